package ina219

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegConfig      = 0
	RegShuntV      = 1
	RegBusV        = 2
	RegPower       = 3
	RegCurrent     = 4
	RegCalibration = 5

	BusVoltageLSB = 0.004
)

type Interface interface {
	Configure(shuntOhms float64, maxCurrent float64) error
	ReadBusVoltage() (float64, error)
	ReadCurrent() (float64, error)
	ReadPower() (float64, error)
}

type port interface {
	// Read reads len(buf) bytes from the device.
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
}

type INA219 struct {
	currentLSB float64
	dev        port
}

func NewI2C(deviceFile string, addr int) (*INA219, error) {
	if addr == 0 {
		addr = DefaultAddr
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening INA219 at %s 0x%x", deviceFile, addr)
	}
	return &INA219{
		dev: dev,
	}, nil
}

func (m *INA219) Configure(shuntOhms float64, maxCurrent float64) error {
	if shuntOhms <= 0 || maxCurrent <= 0 {
		return errors.Errorf("invalid INA219 calibration: shunt=%v max current=%v", shuntOhms, maxCurrent)
	}
	m.currentLSB = maxCurrent / (1 << 15)
	cval := CalculateCalibrationValue(m.currentLSB, shuntOhms)
	return errors.Wrap(
		m.dev.WriteReg(RegCalibration, []byte{byte(cval >> 8), byte(cval)}),
		"writing INA219 calibration",
	)
}

func (m *INA219) ReadBusVoltage() (float64, error) {
	raw, err := m.Read16(RegBusV)
	shifted := raw >> 3
	return float64(shifted) * BusVoltageLSB, err
}

func (m *INA219) ReadCurrent() (float64, error) {
	raw, err := m.Read16(RegCurrent)
	return float64(int16(raw)) * m.currentLSB, err
}

func (m *INA219) ReadPower() (float64, error) {
	raw, err := m.Read16(RegPower)
	return float64(raw) * m.currentLSB * 20, err
}

func (m *INA219) Read16(reg byte) (uint16, error) {
	var buf [2]byte
	err := m.dev.ReadReg(reg, buf[:])
	return uint16(buf[0])<<8 | uint16(buf[1]), err
}

func CalculateCalibrationValue(currentLSB float64, shuntOhms float64) int16 {
	return int16(0.04096 / (currentLSB * shuntOhms))
}

// Reading is a snapshot of the battery rail.
type Reading struct {
	BusVoltage float64
	Current    float64
	Power      float64
}

func (r Reading) String() string {
	return fmt.Sprintf("%.2fV %.2fA %.1fW", r.BusVoltage, r.Current, r.Power)
}

// Monitor turns bus voltage into a rough state of charge for a pack with the
// given empty and full voltages.
type Monitor struct {
	sensor     Interface
	emptyVolts float64
	fullVolts  float64
}

func NewMonitor(sensor Interface, emptyVolts, fullVolts float64) *Monitor {
	return &Monitor{sensor: sensor, emptyVolts: emptyVolts, fullVolts: fullVolts}
}

func (m *Monitor) Read() (Reading, error) {
	var r Reading
	var err error
	if r.BusVoltage, err = m.sensor.ReadBusVoltage(); err != nil {
		return r, errors.Wrap(err, "reading bus voltage")
	}
	if r.Current, err = m.sensor.ReadCurrent(); err != nil {
		return r, errors.Wrap(err, "reading current")
	}
	if r.Power, err = m.sensor.ReadPower(); err != nil {
		return r, errors.Wrap(err, "reading power")
	}
	return r, nil
}

// Charge returns the state of charge in [0, 1].
func (m *Monitor) Charge(r Reading) float64 {
	if m.fullVolts <= m.emptyVolts {
		return 0
	}
	c := (r.BusVoltage - m.emptyVolts) / (m.fullVolts - m.emptyVolts)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func Dummy() Interface {
	return &dummyINA219{}
}

type dummyINA219 struct{}

func (*dummyINA219) Configure(shuntOhms float64, maxCurrent float64) error {
	fmt.Printf("Dummy INA219 configured shunt=%v max current=%v\n", shuntOhms, maxCurrent)
	return nil
}

func (*dummyINA219) ReadBusVoltage() (float64, error) {
	return 12.0, nil
}

func (*dummyINA219) ReadCurrent() (float64, error) {
	return 0, nil
}

func (*dummyINA219) ReadPower() (float64, error) {
	return 0, nil
}
