// Package hardware brings up the robot's devices from config.  Everything on the I2C and
// SPI buses is driven from the line mode loop only, so the devices share no locks.
package hardware

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/ads1115"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/ina219"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/l298n"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/mcp3008"
)

type Hardware struct {
	Actuator drive.Actuator
	ADC      linesensor.ADC
	// Battery is nil when no power monitor is configured.
	Battery *ina219.Monitor

	closers []func() error
	log     *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) (_ *Hardware, err error) {
	h := &Hardware{log: log}
	defer func() {
		if err != nil {
			_ = h.Close()
		}
	}()

	motors, err := l298n.New(cfg.Motors)
	if err != nil {
		return nil, errors.Wrap(err, "motor driver")
	}
	h.Actuator = motors
	h.closers = append(h.closers, motors.Close)

	if h.ADC, err = openADC(cfg.ADC, &h.closers); err != nil {
		return nil, errors.Wrap(err, "line sensor ADC")
	}

	if cfg.Power.Enabled {
		sensor, err := ina219.NewI2C(cfg.Power.Device, cfg.Power.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "power monitor")
		}
		if err := sensor.Configure(cfg.Power.ShuntOhms, cfg.Power.MaxCurrent); err != nil {
			return nil, errors.Wrap(err, "power monitor")
		}
		h.Battery = ina219.NewMonitor(sensor, cfg.Power.EmptyVolts, cfg.Power.FullVolts)
	}
	log.Infow("Hardware ready", "adc", cfg.ADC.Backend, "motors", cfg.Motors.EnableBackend,
		"power", cfg.Power.Enabled)
	return h, nil
}

func openADC(cfg config.ADCConfig, closers *[]func() error) (linesensor.ADC, error) {
	switch cfg.Backend {
	case config.ADCMCP3008:
		adc, err := mcp3008.New(cfg.MCP3008)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, adc.Close)
		return adc, nil
	case config.ADCADS1115:
		adc, err := ads1115.New(cfg.ADS1115)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, adc.Close)
		return adc, nil
	case config.ADCStatic:
		return &linesensor.Static{Values: cfg.Static}, nil
	default:
		return nil, errors.Errorf("unknown ADC backend %q", cfg.Backend)
	}
}

// Close releases the devices in reverse order of opening.  The motor driver is closed last,
// which also stops both channels.
func (h *Hardware) Close() error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			h.log.Warnw("Failed to close device", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	h.closers = nil
	return firstErr
}
