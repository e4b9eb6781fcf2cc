package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/screen"
)

// Shows whatever mode name is typed, with fake sensor and battery readings.  Typing
// "halted" shows the warning.
func main() {
	ctx := context.Background()

	var opts struct {
		Framebuffer string `short:"f" long:"framebuffer" default:"/dev/fb1" description:"Framebuffer device"`
	}
	if _, err := flags.Parse(&opts); err != nil {
		return
	}
	l, _ := zap.NewDevelopment()
	s, err := screen.Open(opts.Framebuffer, 200*time.Millisecond, clock.New(), l.Sugar())
	if err != nil {
		fmt.Println("Failed to open screen:", err)
		return
	}
	go s.Loop(ctx)

	status := screen.Status{
		Mode:       "Idle",
		LeftOnLine: true,
		BusVoltage: 7.9,
		Charge:     0.8,
	}
	s.Update(status)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}
		status.Mode = strings.TrimSpace(line)
		status.Halted = strings.EqualFold(status.Mode, "halted")
		status.LeftOnLine, status.RightOnLine = status.RightOnLine, !status.LeftOnLine
		s.Update(status)
	}
}
