// Package linesensor turns raw reflectance readings into on-line/off-line decisions.
package linesensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Classify reports whether a raw reading sees the line.  Normal sensors read low over the
// (dark) line; inverted ones read high.  A reading equal to the threshold is never on-line.
func Classify(raw, threshold int, inverted bool) bool {
	if inverted {
		return raw > threshold
	}
	return raw < threshold
}

// ADC is anything that can sample an analog channel.
type ADC interface {
	ReadChannel(channel int) (int, error)
}

type State struct {
	LeftOnLine  bool
	RightOnLine bool

	RawLeft  int
	RawRight int
}

func (s State) String() string {
	return fmt.Sprintf("L=%v(%d) R=%v(%d)", s.LeftOnLine, s.RawLeft, s.RightOnLine, s.RawRight)
}

type Config struct {
	LeftChannel  int  `yaml:"left_channel"`
	RightChannel int  `yaml:"right_channel"`
	Threshold    int  `yaml:"threshold"`
	Inverted     bool `yaml:"inverted"`
}

type Reader struct {
	adc    ADC
	config Config
}

func NewReader(adc ADC, config Config) *Reader {
	return &Reader{
		adc:    adc,
		config: config,
	}
}

// Read samples both sensors once.
func (r *Reader) Read() (State, error) {
	left, err := r.adc.ReadChannel(r.config.LeftChannel)
	if err != nil {
		return State{}, errors.Wrap(err, "reading left line sensor")
	}
	right, err := r.adc.ReadChannel(r.config.RightChannel)
	if err != nil {
		return State{}, errors.Wrap(err, "reading right line sensor")
	}
	return State{
		LeftOnLine:  Classify(left, r.config.Threshold, r.config.Inverted),
		RightOnLine: Classify(right, r.config.Threshold, r.config.Inverted),
		RawLeft:     left,
		RawRight:    right,
	}, nil
}

// Static is an ADC that returns fixed values; the simulator uses it in place of hardware.
type Static struct {
	Values map[int]int
}

func (s *Static) ReadChannel(channel int) (int, error) {
	return s.Values[channel], nil
}
