package mcp3008

import (
	"github.com/pkg/errors"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const (
	NumChannels = 8

	// MaxValue is the full scale reading; the ADC is 10 bits.
	MaxValue = 1023

	DefaultDevice = "/dev/spidev0.0"
	DefaultSpeed  = physic.MegaHertz
)

type Config struct {
	Device   string `yaml:"device"`
	SpeedKHz int    `yaml:"speed_khz"`
}

// conn is the part of spi.Conn that we use.
type conn interface {
	Tx(w, r []byte) error
}

type MCP3008 struct {
	c    conn
	port spi.PortCloser

	w, r [3]byte
}

func New(config Config) (*MCP3008, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph")
	}

	device := config.Device
	if device == "" {
		device = DefaultDevice
	}
	speed := DefaultSpeed
	if config.SpeedKHz > 0 {
		speed = physic.Frequency(config.SpeedKHz) * physic.KiloHertz
	}

	p, err := spireg.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening SPI port %s", device)
	}

	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, errors.Wrapf(err, "connecting to SPI port %s", device)
	}

	return &MCP3008{
		c:    c,
		port: p,
	}, nil
}

// ReadChannel does a single ended conversion on the given channel.
func (m *MCP3008) ReadChannel(channel int) (int, error) {
	if channel < 0 || channel >= NumChannels {
		return 0, errors.Errorf("MCP3008 channel out of range: %d", channel)
	}
	// Start bit, then single-ended flag and channel number in the top nibble.  The 10 bit
	// result comes back in the low 2 bits of the second byte and all of the third.
	m.w = [3]byte{0x01, byte(0x80 | channel<<4), 0x00}
	if err := m.c.Tx(m.w[:], m.r[:]); err != nil {
		return 0, errors.Wrapf(err, "reading MCP3008 channel %d", channel)
	}
	return int(m.r[1]&0x03)<<8 | int(m.r[2]), nil
}

func (m *MCP3008) Close() error {
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}
