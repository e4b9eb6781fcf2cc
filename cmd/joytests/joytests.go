package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/tunable"
)

// Prints each pad event and the robot command it maps to.
func main() {
	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel)

	cfg := config.Default()
	parser, err := command.NewParser(cfg.CommandTargets())
	if err != nil {
		log.Fatal(err)
	}
	tunables := &tunable.Tunables{}
	tunables.Create("example", 100, 0, 255)
	mapper := joystick.NewMapper(parser.Targets(), tunables, cfg.Joystick.TuneStep)

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = cfg.Joystick.Device
	}
	events := make(chan *joystick.Event)
	go func() {
		defer close(events)
		for ctx.Err() == nil {
			j, err := joystick.NewJoystick(jDev)
			if err != nil {
				fmt.Printf("Waiting for joystick: %v.\n", err)
				time.Sleep(1 * time.Second)
				continue
			}
			fmt.Printf("Opened joystick\n")
			err = joystick.Loop(ctx, j, events)
			fmt.Printf("Joystick failed: %v\n", err)
		}
	}()

	for e := range events {
		if cmd, ok := mapper.Map(e); ok {
			fmt.Printf("%v -> %v\n", e, cmd)
		} else {
			fmt.Println(e)
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
