package pca9685

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	NumOutputs = 16
	PWMMax     = 4095

	oscillatorHz = 25_000_000

	DefaultFrequencyHz = 1000
)

type Interface interface {
	Configure(frequencyHz int) error
	SetPWM(output int, value float64) error
	Close() error
}

type port interface {
	WriteReg(reg byte, buf []byte) (err error)
}

type PCA9685 struct {
	dev   port
	close func() error
	sleep func(time.Duration)
}

func New(deviceFile string, addr int) (Interface, error) {
	if addr == 0 {
		addr = DefaultAddr
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 at %s 0x%x", deviceFile, addr)
	}
	return &PCA9685{
		dev:   dev,
		close: dev.Close,
		sleep: time.Sleep,
	}, nil
}

// PreScale returns the pre-scaler register value for the given output frequency.
func PreScale(frequencyHz int) byte {
	if frequencyHz <= 0 {
		frequencyHz = DefaultFrequencyHz
	}
	v := math.Round(float64(oscillatorHz)/(4096*float64(frequencyHz))) - 1
	// The chip ignores writes below 3.
	if v < 3 {
		v = 3
	} else if v > 255 {
		v = 255
	}
	return byte(v)
}

func (p *PCA9685) Configure(frequencyHz int) (err error) {
	// Put device to sleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	err = p.dev.WriteReg(RegPreScale, []byte{PreScale(frequencyHz)})
	if err != nil {
		return
	}
	// Trigger a reset
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	p.sleep(1 * time.Millisecond)
	// Enable.
	err = p.dev.WriteReg(RegMode1, []byte{0x81})
	return
}

// SetPWM sets the duty cycle of an output, value is clamped to [0, 1].
func (p *PCA9685) SetPWM(output int, value float64) error {
	if output < 0 || output >= NumOutputs {
		return errors.Errorf("PWM output out of range: %d", output)
	}
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	pwmValue := uint16(PWMMax * value)
	addr := RegLEDBase + output*4

	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)})
}

func (p *PCA9685) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
