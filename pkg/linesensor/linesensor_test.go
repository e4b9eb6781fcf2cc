package linesensor

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestClassify(t *testing.T) {
	expectClassify(t, 499, 500, false, true)
	expectClassify(t, 500, 500, false, false)
	expectClassify(t, 501, 500, false, false)
	expectClassify(t, 0, 500, false, true)

	expectClassify(t, 501, 500, true, true)
	expectClassify(t, 500, 500, true, false)
	expectClassify(t, 499, 500, true, false)
	expectClassify(t, 1023, 500, true, true)
}

func expectClassify(t *testing.T, raw, threshold int, inverted, expected bool) {
	t.Helper()
	if Classify(raw, threshold, inverted) != expected {
		t.Errorf("Classify(%d, %d, %v) should be %v", raw, threshold, inverted, expected)
	}
}

type failingADC struct {
	failOn int
}

func (f *failingADC) ReadChannel(channel int) (int, error) {
	if channel == f.failOn {
		return 0, errors.New("spi transfer failed")
	}
	return 100, nil
}

func TestReader(t *testing.T) {
	adc := &Static{Values: map[int]int{0: 120, 1: 800}}
	r := NewReader(adc, Config{LeftChannel: 0, RightChannel: 1, Threshold: 500})

	s, err := r.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.LeftOnLine, test.ShouldBeTrue)
	test.That(t, s.RightOnLine, test.ShouldBeFalse)
	test.That(t, s.RawLeft, test.ShouldEqual, 120)
	test.That(t, s.RawRight, test.ShouldEqual, 800)

	inv := NewReader(adc, Config{LeftChannel: 0, RightChannel: 1, Threshold: 500, Inverted: true})
	s, err = inv.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.LeftOnLine, test.ShouldBeFalse)
	test.That(t, s.RightOnLine, test.ShouldBeTrue)
}

func TestReaderErrors(t *testing.T) {
	r := NewReader(&failingADC{failOn: 1}, Config{LeftChannel: 0, RightChannel: 1, Threshold: 500})
	_, err := r.Read()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "right line sensor")
}
