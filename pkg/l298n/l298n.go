// Package l298n drives a dual H-bridge with two direction inputs and one enable input per
// channel.  Direction pins are plain GPIOs; the enable inputs take PWM either straight from
// the SoC or from a PCA9685 expander.
package l298n

import (
	"github.com/pkg/errors"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/pca9685"
)

const (
	EnableGPIO    = "gpio"
	EnablePCA9685 = "pca9685"

	DefaultPWMHz = 1000
)

type ChannelConfig struct {
	In1    string `yaml:"in1"`
	In2    string `yaml:"in2"`
	Enable string `yaml:"enable"`
	// PWMOutput is the expander output used when the enable backend is pca9685.
	PWMOutput int `yaml:"pwm_output"`
}

type Config struct {
	// Left is motor A, right is motor B.
	Left  ChannelConfig `yaml:"left"`
	Right ChannelConfig `yaml:"right"`

	EnableBackend string `yaml:"enable_backend"`
	PWMHz         int    `yaml:"pwm_hz"`
	I2CDevice     string `yaml:"i2c_device"`
	PCA9685Addr   int    `yaml:"pca9685_addr"`
}

// DirectionPin is the part of gpio.PinOut used for IN1/IN2.
type DirectionPin interface {
	Out(l gpio.Level) error
}

// EnableOutput sets the duty cycle, in [0, 1], of a channel's enable input.
type EnableOutput interface {
	SetDuty(fraction float64) error
}

type Channel struct {
	In1, In2 DirectionPin
	Enable   EnableOutput
}

type L298N struct {
	channels [2]Channel
	closers  []func() error
}

var _ drive.Actuator = (*L298N)(nil)

func NewFromChannels(left, right Channel) *L298N {
	return &L298N{channels: [2]Channel{drive.Left: left, drive.Right: right}}
}

func New(config Config) (*L298N, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph")
	}
	freq := physic.Frequency(config.PWMHz) * physic.Hertz
	if config.PWMHz <= 0 {
		freq = DefaultPWMHz * physic.Hertz
	}

	l := &L298N{}
	var expander pca9685.Interface
	switch config.EnableBackend {
	case "", EnableGPIO:
	case EnablePCA9685:
		var err error
		expander, err = pca9685.New(config.I2CDevice, config.PCA9685Addr)
		if err != nil {
			return nil, err
		}
		if err := expander.Configure(config.PWMHz); err != nil {
			_ = expander.Close()
			return nil, errors.Wrap(err, "configuring PCA9685")
		}
		l.closers = append(l.closers, expander.Close)
	default:
		return nil, errors.Errorf("unknown enable backend %q", config.EnableBackend)
	}

	fail := func(err error) (*L298N, error) {
		for _, c := range l.closers {
			_ = c()
		}
		return nil, err
	}
	for _, side := range []drive.Side{drive.Left, drive.Right} {
		cc := config.Left
		if side == drive.Right {
			cc = config.Right
		}
		in1, err := lookupPin(cc.In1)
		if err != nil {
			return fail(errors.Wrapf(err, "%v IN1", side))
		}
		in2, err := lookupPin(cc.In2)
		if err != nil {
			return fail(errors.Wrapf(err, "%v IN2", side))
		}
		ch := Channel{In1: in1, In2: in2}
		if expander != nil {
			ch.Enable = &expanderEnable{dev: expander, output: cc.PWMOutput}
		} else {
			en, err := lookupPin(cc.Enable)
			if err != nil {
				return fail(errors.Wrapf(err, "%v enable", side))
			}
			ch.Enable = &gpioEnable{pin: en, freq: freq}
		}
		l.channels[side] = ch
	}
	return l, nil
}

func lookupPin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.New("pin not configured")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no GPIO pin named %q", name)
	}
	return pin, nil
}

// SetChannel sets direction then duty.  Speed 0 drives both inputs low, which lets the
// motor coast.
func (l *L298N) SetChannel(side drive.Side, speed int, forward bool) error {
	if side != drive.Left && side != drive.Right {
		return errors.Errorf("unknown side %v", side)
	}
	ch := l.channels[side]
	if speed > drive.MaxSpeed {
		speed = drive.MaxSpeed
	}
	in1, in2 := gpio.Low, gpio.Low
	if speed > 0 {
		if forward {
			in1 = gpio.High
		} else {
			in2 = gpio.High
		}
	} else {
		speed = 0
	}
	if err := ch.In1.Out(in1); err != nil {
		return errors.Wrapf(err, "setting %v IN1", side)
	}
	if err := ch.In2.Out(in2); err != nil {
		return errors.Wrapf(err, "setting %v IN2", side)
	}
	if err := ch.Enable.SetDuty(float64(speed) / drive.MaxSpeed); err != nil {
		return errors.Wrapf(err, "setting %v enable", side)
	}
	return nil
}

// Close stops both channels and releases the expander, if any.
func (l *L298N) Close() error {
	var firstErr error
	for _, side := range []drive.Side{drive.Left, drive.Right} {
		if l.channels[side].Enable == nil {
			continue
		}
		if err := l.SetChannel(side, 0, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range l.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type gpioEnable struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

func (g *gpioEnable) SetDuty(fraction float64) error {
	if fraction <= 0 {
		return g.pin.Out(gpio.Low)
	}
	if fraction >= 1 {
		return g.pin.Out(gpio.High)
	}
	return g.pin.PWM(gpio.Duty(fraction*float64(gpio.DutyMax)), g.freq)
}

type expanderEnable struct {
	dev    pca9685.Interface
	output int
}

func (e *expanderEnable) SetDuty(fraction float64) error {
	return e.dev.SetPWM(e.output, fraction)
}
