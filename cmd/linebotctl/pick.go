package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
)

type PickCommand struct{}

func (c *PickCommand) Execute(args []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	var options []huh.Option[string]
	for _, t := range cfg.CommandTargets() {
		label := fmt.Sprintf("%d  %s (%v)", t.Number, t.Name, t.Duration)
		options = append(options, huh.NewOption(label, strings.ToLower(t.Name)))
	}
	options = append(options,
		huh.NewOption("Cancel the current run", "cancel"),
		huh.NewOption("Follow mode", "follow"),
	)

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the robot go?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return nil
	}

	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()

	var replies []string
	switch choice {
	case "cancel", "follow":
		replies, err = client.SendLine(ctx, choice)
	default:
		replies, err = client.Dispatch(ctx, choice)
	}
	printReplies(replies)
	return err
}
