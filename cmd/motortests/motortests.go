package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/hardware"
)

type options struct {
	Config   string        `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Config file"`
	Duration time.Duration `short:"d" long:"duration" default:"1s" description:"How long to run each action"`
}

// Runs each drive action in turn so the wiring and the speeds can be checked by eye.
func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		return
	}

	fmt.Println("---- Motor tests ----")

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}
	cfg.Power.Enabled = false
	cfg.ADC.Backend = config.ADCStatic

	l, _ := zap.NewDevelopment()
	log := l.Sugar()
	hw, err := hardware.New(cfg, log)
	if err != nil {
		fmt.Println("Failed to open hardware", err)
		return
	}
	d := drive.New(hw.Actuator, log)
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		d.Stop()
		hw.Close()
	}()

	s := cfg.Speeds
	steps := []struct {
		name string
		run  func()
	}{
		{"forward at base speed", func() { d.Forward(s.Base) }},
		{"backward at base speed", func() { d.Backward(s.Base) }},
		{"soft turn left at turn speed", func() { d.SoftTurnLeft(s.Turn) }},
		{"soft turn right at turn speed", func() { d.SoftTurnRight(s.Turn) }},
		{"pivot left at search speed", func() { d.PivotLeft(s.Search) }},
		{"pivot right at search speed", func() { d.PivotRight(s.Search) }},
	}

	scanner := bufio.NewScanner(os.Stdin)
	for _, step := range steps {
		fmt.Printf("Press enter to run %s for %v\n", step.name, opts.Duration)
		if !scanner.Scan() {
			return
		}
		step.run()
		time.Sleep(opts.Duration)
		d.Stop()
		fmt.Println("Output was", d.Current())
	}
}
