package ads1115

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr   = 0x48
	DefaultDevice = "/dev/i2c-1"

	NumChannels = 4

	RegConversion = 0
	RegConfig     = 1

	configStartSingle  = 0x8000
	configMuxSingleAIN = 0x4000 // AINx against GND; channel goes in bits 12-13.
	configPGA4V        = 0x0200
	configModeSingle   = 0x0100
	configRate860SPS   = 0x00e0
	configCompDisable  = 0x0003

	// At 860 samples/s a conversion takes ~1.2ms.
	conversionTime = 2 * time.Millisecond

	// Readings are scaled down to 10 bits so that thresholds are interchangeable with the
	// MCP3008.
	resultShift = 5
)

type Config struct {
	Device string `yaml:"device"`
	Addr   int    `yaml:"addr"`
}

type port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
}

type ADS1115 struct {
	dev   port
	close func() error
	sleep func(time.Duration)
}

func New(config Config) (*ADS1115, error) {
	device := config.Device
	if device == "" {
		device = DefaultDevice
	}
	addr := config.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: device}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening ADS1115 at %s 0x%x", device, addr)
	}
	return &ADS1115{
		dev:   dev,
		close: dev.Close,
		sleep: time.Sleep,
	}, nil
}

// ReadChannel triggers a single-shot conversion and returns it scaled to 0-1023.
func (a *ADS1115) ReadChannel(channel int) (int, error) {
	if channel < 0 || channel >= NumChannels {
		return 0, errors.Errorf("ADS1115 channel out of range: %d", channel)
	}
	config := uint16(configStartSingle | configMuxSingleAIN | channel<<12 |
		configPGA4V | configModeSingle | configRate860SPS | configCompDisable)
	if err := a.dev.WriteReg(RegConfig, []byte{byte(config >> 8), byte(config)}); err != nil {
		return 0, errors.Wrapf(err, "starting ADS1115 conversion on channel %d", channel)
	}
	a.sleep(conversionTime)

	var buf [2]byte
	if err := a.dev.ReadReg(RegConversion, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "reading ADS1115 channel %d", channel)
	}
	raw := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	if raw < 0 {
		// Single ended inputs can read slightly below ground.
		raw = 0
	}
	return int(raw) >> resultShift, nil
}

func (a *ADS1115) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}
