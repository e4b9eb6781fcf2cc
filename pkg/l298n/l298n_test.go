package l298n

import (
	"testing"

	"go.viam.com/test"
	"periph.io/x/periph/conn/gpio"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
)

type fakePin struct {
	level gpio.Level
}

func (p *fakePin) Out(l gpio.Level) error {
	p.level = l
	return nil
}

type fakeEnable struct {
	duty float64
}

func (e *fakeEnable) SetDuty(fraction float64) error {
	e.duty = fraction
	return nil
}

type fakeExpander struct {
	outputs map[int]float64
}

func (f *fakeExpander) Configure(int) error { return nil }
func (f *fakeExpander) Close() error        { return nil }
func (f *fakeExpander) SetPWM(output int, value float64) error {
	f.outputs[output] = value
	return nil
}

type bench struct {
	in1, in2 [2]*fakePin
	enable   [2]*fakeEnable
	l        *L298N
}

func newBench() *bench {
	b := &bench{}
	var chans [2]Channel
	for i := range chans {
		b.in1[i], b.in2[i], b.enable[i] = &fakePin{}, &fakePin{}, &fakeEnable{}
		chans[i] = Channel{In1: b.in1[i], In2: b.in2[i], Enable: b.enable[i]}
	}
	b.l = NewFromChannels(chans[0], chans[1])
	return b
}

func TestDirectionAndDuty(t *testing.T) {
	b := newBench()

	test.That(t, b.l.SetChannel(drive.Left, 255, true), test.ShouldBeNil)
	test.That(t, b.in1[drive.Left].level, test.ShouldEqual, gpio.High)
	test.That(t, b.in2[drive.Left].level, test.ShouldEqual, gpio.Low)
	test.That(t, b.enable[drive.Left].duty, test.ShouldEqual, 1.0)

	test.That(t, b.l.SetChannel(drive.Right, 51, false), test.ShouldBeNil)
	test.That(t, b.in1[drive.Right].level, test.ShouldEqual, gpio.Low)
	test.That(t, b.in2[drive.Right].level, test.ShouldEqual, gpio.High)
	test.That(t, b.enable[drive.Right].duty, test.ShouldAlmostEqual, 0.2)

	// Left is untouched by the right channel.
	test.That(t, b.in1[drive.Left].level, test.ShouldEqual, gpio.High)
}

func TestZeroSpeedReleasesBothLines(t *testing.T) {
	b := newBench()
	test.That(t, b.l.SetChannel(drive.Left, 200, false), test.ShouldBeNil)
	test.That(t, b.l.SetChannel(drive.Left, 0, false), test.ShouldBeNil)
	test.That(t, b.in1[drive.Left].level, test.ShouldEqual, gpio.Low)
	test.That(t, b.in2[drive.Left].level, test.ShouldEqual, gpio.Low)
	test.That(t, b.enable[drive.Left].duty, test.ShouldEqual, 0.0)

	test.That(t, b.l.SetChannel(drive.Left, -10, true), test.ShouldBeNil)
	test.That(t, b.in1[drive.Left].level, test.ShouldEqual, gpio.Low)
	test.That(t, b.enable[drive.Left].duty, test.ShouldEqual, 0.0)
}

func TestSpeedClampedAndBadSide(t *testing.T) {
	b := newBench()
	test.That(t, b.l.SetChannel(drive.Right, 1000, true), test.ShouldBeNil)
	test.That(t, b.enable[drive.Right].duty, test.ShouldEqual, 1.0)
	test.That(t, b.l.SetChannel(drive.Side(7), 10, true), test.ShouldNotBeNil)
}

func TestExpanderEnable(t *testing.T) {
	x := &fakeExpander{outputs: map[int]float64{}}
	l := NewFromChannels(
		Channel{In1: &fakePin{}, In2: &fakePin{}, Enable: &expanderEnable{dev: x, output: 4}},
		Channel{In1: &fakePin{}, In2: &fakePin{}, Enable: &expanderEnable{dev: x, output: 5}},
	)
	test.That(t, l.SetChannel(drive.Right, 255, true), test.ShouldBeNil)
	test.That(t, x.outputs[5], test.ShouldEqual, 1.0)
	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, x.outputs, test.ShouldResemble, map[int]float64{4: 0, 5: 0})
}
