package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
)

type options struct {
	Config string `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Config file"`
}

// Prints the raw line sensor readings and how they classify, for setting the threshold.
func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		return
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Println("Failed to load config", err)
		return
	}
	cfg.Power.Enabled = false

	l, _ := zap.NewDevelopment()
	hw, err := hardware.New(cfg, l.Sugar())
	if err != nil {
		fmt.Println("Failed to open hardware", err)
		return
	}
	defer hw.Close()

	fmt.Printf("Threshold %d, inverted %v\n", cfg.Sensors.Threshold, cfg.Sensors.Inverted)
	reader := linesensor.NewReader(hw.ADC, cfg.Sensors)
	var minL, maxL, minR, maxR = 1 << 16, 0, 1 << 16, 0
	for range time.NewTicker(200 * time.Millisecond).C {
		s, err := reader.Read()
		if err != nil {
			fmt.Println("Read failed:", err)
			continue
		}
		minL, maxL = min(minL, s.RawLeft), max(maxL, s.RawLeft)
		minR, maxR = min(minR, s.RawRight), max(maxR, s.RawRight)
		fmt.Printf("%v  range L %d-%d R %d-%d\n", s, minL, maxL, minR, maxR)
	}
}
