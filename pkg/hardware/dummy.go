package hardware

import (
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/ina219"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
)

// NewDummy returns hardware for running off the robot: motor commands are printed and the
// line sensors return the static readings from config, or both-on-line if there are none.
func NewDummy(cfg config.Config, log *zap.SugaredLogger) *Hardware {
	values := cfg.ADC.Static
	if len(values) == 0 {
		onLine := cfg.Sensors.Threshold - 1
		if cfg.Sensors.Inverted {
			onLine = cfg.Sensors.Threshold + 1
		}
		values = map[int]int{
			cfg.Sensors.LeftChannel:  onLine,
			cfg.Sensors.RightChannel: onLine,
		}
	}
	h := &Hardware{
		Actuator: drive.Dummy(),
		ADC:      &linesensor.Static{Values: values},
		log:      log,
	}
	if cfg.Power.Enabled {
		h.Battery = ina219.NewMonitor(ina219.Dummy(), cfg.Power.EmptyVolts, cfg.Power.FullVolts)
	}
	log.Info("Using dummy hardware")
	return h
}
