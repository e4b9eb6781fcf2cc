package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/ina219"
)

type options struct {
	Config string `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Config file"`
}

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
	p := cfg.Power

	sensor, err := ina219.NewI2C(p.Device, p.Addr)
	if err != nil {
		fmt.Println("Failed to open ina219", err)
		return
	}
	err = sensor.Configure(p.ShuntOhms, p.MaxCurrent)
	if err != nil {
		fmt.Println("Failed to configure ina219", err)
		return
	}
	monitor := ina219.NewMonitor(sensor, p.EmptyVolts, p.FullVolts)

	for range time.NewTicker(500 * time.Millisecond).C {
		r, err := monitor.Read()
		if err != nil {
			fmt.Println("Read failed:", err)
			continue
		}
		fmt.Printf("%v charge %.0f%%\n", r, monitor.Charge(r)*100)
	}
}
