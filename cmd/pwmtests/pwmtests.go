package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/pca9685"
)

type options struct {
	Config string `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Config file"`
}

// Drives the PWM expander outputs by hand, for checking the motor enable wiring.
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
	m := cfg.Motors

	pwmController, err := pca9685.New(m.I2CDevice, m.PCA9685Addr)
	if err != nil {
		fmt.Println("Failed to open PCA9685", err)
		return
	}
	defer pwmController.Close()

	err = pwmController.Configure(m.PWMHz)
	if err != nil {
		fmt.Println("Failed to configure PCA9685", err)
		return
	}

	fmt.Printf(`Commands:
    p <n> <pwm-duty-cycle>  # Set output duty cycle
    off                     # All outputs off

<n>               Port number 0-15; left motor is %d, right is %d
<pwm-duty-cycle>  Raw PWM duty cycle 0.0-1.0; 0=fully off, 1.0=fully on
`, m.Left.PWMOutput, m.Right.PWMOutput)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "off":
			for n := 0; n < 16; n++ {
				if err := pwmController.SetPWM(n, 0); err != nil {
					fmt.Println("Failed to write to PCA9685: ", err)
					return
				}
			}
		case "p":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[2])
				continue
			}
			fmt.Printf("Setting PWM %d to %f\n", n, v)
			if err := pwmController.SetPWM(n, v); err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
			}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
