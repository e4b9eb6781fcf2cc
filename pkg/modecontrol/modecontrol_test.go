package modecontrol

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
)

type nullActuator struct{}

func (nullActuator) SetChannel(side drive.Side, speed int, forward bool) error { return nil }

type fakeSensors struct {
	state linesensor.State
	err   error
	reads int
}

func (f *fakeSensors) Read() (linesensor.State, error) {
	f.reads++
	return f.state, f.err
}

func (f *fakeSensors) set(left, right bool) {
	f.state = linesensor.State{LeftOnLine: left, RightOnLine: right}
}

var testSpeeds = Speeds{Base: 110, Turn: 90, Search: 160}

type harness struct {
	t       *testing.T
	clock   *clock.Mock
	sensors *fakeSensors
	ctrl    *Controller
	parser  *command.Parser
}

func newHarness(t *testing.T, safety time.Duration) *harness {
	t.Helper()
	clk := clock.NewMock()
	sensors := &fakeSensors{}
	log := zaptest.NewLogger(t).Sugar()
	d := drive.New(nullActuator{}, log)
	parser, err := command.NewParser([]command.Target{
		{Name: "MILK", Duration: 20 * time.Second},
		{Name: "BREAD", Duration: 25 * time.Second},
		{Name: "PEN", Duration: 15 * time.Second},
	})
	test.That(t, err, test.ShouldBeNil)
	return &harness{
		t:       t,
		clock:   clk,
		sensors: sensors,
		ctrl:    New(Config{Speeds: testSpeeds, SafetyTimeout: safety}, d, sensors, clk, log),
		parser:  parser,
	}
}

func (h *harness) sendByte(b byte) []Message {
	h.t.Helper()
	c, ok := h.parser.ParseByte(b)
	test.That(h.t, ok, test.ShouldBeTrue)
	return h.ctrl.Handle(c)
}

func (h *harness) sendLine(line string) []Message {
	h.t.Helper()
	c, ok := h.parser.ParseLine(line)
	test.That(h.t, ok, test.ShouldBeTrue)
	return h.ctrl.Handle(c)
}

func (h *harness) output() drive.Output {
	return h.ctrl.State().Drive
}

func texts(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestStartsIdleAndStopped(t *testing.T) {
	h := newHarness(t, 0)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
	test.That(t, h.ctrl.State().LastErrorSign, test.ShouldEqual, 1)

	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)
	test.That(t, h.sensors.reads, test.ShouldEqual, 0)
}

func TestDriveBytes(t *testing.T) {
	h := newHarness(t, 0)

	msgs := h.sendByte('F')
	test.That(t, texts(msgs), test.ShouldResemble, []string{"ACK: F"})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Follow)
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionForward)
	test.That(t, h.output().Left, test.ShouldResemble, drive.ChannelOutput{Speed: 110, Forward: true})

	// Follow mode holds the output across ticks without reading sensors.
	h.clock.Add(time.Second)
	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionForward)
	test.That(t, h.sensors.reads, test.ShouldEqual, 0)

	msgs = h.sendByte('S')
	test.That(t, texts(msgs), test.ShouldResemble, []string{"ACK: S"})
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Follow)

	h.sendByte('B')
	test.That(t, h.output().Right, test.ShouldResemble, drive.ChannelOutput{Speed: 110, Forward: false})
	h.sendByte('L')
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionPivotLeft)
	test.That(t, h.output().Speed, test.ShouldEqual, 90)
	h.sendByte('R')
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionPivotRight)
}

func TestStartTargetByLine(t *testing.T) {
	h := newHarness(t, 0)
	msgs := h.sendLine("go to bread")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Started run for target 2 (BREAD) for 25 s"})
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRunStarted)

	s := h.ctrl.State()
	test.That(t, s.Mode, test.ShouldEqual, Autonomous)
	test.That(t, s.Target.Number, test.ShouldEqual, 2)
	test.That(t, s.RunDeadline, test.ShouldEqual, h.clock.Now().Add(25*time.Second))
}

func TestStartTargetWhileRunningIsRejected(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	before := h.ctrl.State()

	h.clock.Add(3 * time.Second)
	msgs := h.sendByte('2')
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Already executing; ignoring new command.", "ACK: 2"})
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRejected)

	after := h.ctrl.State()
	test.That(t, after.Target.Number, test.ShouldEqual, 1)
	test.That(t, after.RunDeadline, test.ShouldEqual, before.RunDeadline)

	msgs = h.sendLine("milk")
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRejected)
	test.That(t, h.ctrl.State().RunDeadline, test.ShouldEqual, before.RunDeadline)
}

func TestRunFinishesAtDeadline(t *testing.T) {
	h := newHarness(t, 0)
	h.sensors.set(true, true)
	start := h.clock.Now()
	h.sendByte('3')

	finished := 0
	for i := 0; i < 1000; i++ {
		msgs := h.ctrl.Tick()
		for _, m := range msgs {
			if m.Kind == MsgRunFinished {
				finished++
				test.That(t, h.clock.Now().Before(start.Add(15*time.Second)), test.ShouldBeFalse)
			}
		}
		h.clock.Add(20 * time.Millisecond)
	}
	test.That(t, finished, test.ShouldEqual, 1)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
}

func TestRunDoesNotFinishEarly(t *testing.T) {
	h := newHarness(t, 0)
	h.sensors.set(true, true)
	h.sendByte('1')
	h.clock.Add(20*time.Second - time.Millisecond)
	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Autonomous)
	h.clock.Add(time.Millisecond)
	msgs := h.ctrl.Tick()
	test.That(t, msgs, test.ShouldHaveLength, 1)
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRunFinished)
}

func TestLineFollowingControlLaw(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')

	h.sensors.set(true, true)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionForward)
	test.That(t, h.output().Speed, test.ShouldEqual, testSpeeds.Base)

	h.sensors.set(true, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionPivotLeft)
	test.That(t, h.output().Speed, test.ShouldEqual, testSpeeds.Turn)
	test.That(t, h.ctrl.State().LastErrorSign, test.ShouldEqual, -1)

	h.sensors.set(false, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionSoftLeft)
	test.That(t, h.output().Left, test.ShouldResemble, drive.ChannelOutput{Speed: 80, Forward: true})
	test.That(t, h.output().Right, test.ShouldResemble, drive.ChannelOutput{Speed: 160, Forward: true})

	h.sensors.set(false, true)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionPivotRight)
	test.That(t, h.ctrl.State().LastErrorSign, test.ShouldEqual, 1)

	h.sensors.set(false, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionSoftRight)

	// Symmetric readings leave the sign alone.
	h.sensors.set(true, true)
	h.ctrl.Tick()
	test.That(t, h.ctrl.State().LastErrorSign, test.ShouldEqual, 1)
}

func TestLostLineBeforeAnySightingSearchesRight(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	h.sensors.set(false, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionSoftRight)
}

func TestLastErrorSignSurvivesModeChanges(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	h.sensors.set(true, false)
	h.ctrl.Tick()
	h.sendLine("cancel")
	h.sendLine("follow")
	h.sendLine("stop follow")
	h.sendByte('2')
	h.sensors.set(false, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionSoftLeft)
}

func TestSensorErrorHoldsOutput(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	h.sensors.set(true, true)
	h.ctrl.Tick()
	h.sensors.err = errors.New("adc gone")
	h.sensors.set(false, false)
	h.ctrl.Tick()
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionForward)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Autonomous)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, 0)
	msgs := h.sendLine("cancel")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"No active execution to cancel."})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)

	h.sendByte('F')
	msgs = h.sendLine("cancel")
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRejected)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Follow)
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionForward)

	h.sendByte('1')
	h.sensors.set(true, true)
	h.ctrl.Tick()
	test.That(t, h.output().Stopped(), test.ShouldBeFalse)
	msgs = h.sendLine("cancel")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Execution cancelled. Back to idle."})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
	test.That(t, h.ctrl.State().RunDeadline.IsZero(), test.ShouldBeTrue)
}

func TestFollowModeTransitions(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('2')
	h.sensors.set(true, true)
	h.ctrl.Tick()

	msgs := h.sendLine("follow me")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Follow mode enabled."})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Follow)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)

	// The cancelled run never finishes.
	h.clock.Add(time.Minute)
	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)

	h.sendByte('F')
	msgs = h.sendLine("stop follow")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Follow mode disabled. Back to idle."})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)

	// A target from follow mode starts a run straight away.
	h.sendByte('F')
	msgs = h.sendByte('1')
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRunStarted)
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Autonomous)
}

func TestDriveDuringRunTakesOver(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	h.sendByte('L')
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Follow)
	test.That(t, h.output().Action, test.ShouldEqual, drive.ActionPivotLeft)
	test.That(t, h.ctrl.State().Target.Number, test.ShouldEqual, 0)
}

func TestExitFollowDuringRunGoesIdle(t *testing.T) {
	h := newHarness(t, 0)
	h.sendByte('1')
	h.sendLine("end follow")
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)
	msgs := h.sendByte('2')
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgRunStarted)
}

func TestUnknownAndStatus(t *testing.T) {
	h := newHarness(t, 0)
	msgs := h.sendLine("make tea")
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Unknown cmd (line): MAKE TEA"})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Idle)

	h.sendByte('2')
	h.clock.Add(5 * time.Second)
	msgs = h.sendLine("status")
	test.That(t, msgs, test.ShouldHaveLength, 1)
	test.That(t, msgs[0].Text, test.ShouldContainSubstring, "autonomous")
	test.That(t, msgs[0].Text, test.ShouldContainSubstring, "remaining 20.0 s")
}

func TestSafetyStop(t *testing.T) {
	h := newHarness(t, 100*time.Second)
	h.sendByte('F')

	h.clock.Add(99 * time.Second)
	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)

	h.clock.Add(time.Second)
	msgs := h.ctrl.Tick()
	test.That(t, texts(msgs), test.ShouldResemble, []string{"Stopped after configured timeout."})
	test.That(t, h.ctrl.Mode(), test.ShouldEqual, Halted)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)

	for _, send := range []func() []Message{
		func() []Message { return h.sendByte('1') },
		func() []Message { return h.sendByte('F') },
		func() []Message { return h.sendLine("follow") },
		func() []Message { return h.sendLine("go to pen") },
		func() []Message { return h.sendByte('R') },
	} {
		msgs := send()
		test.That(t, msgs, test.ShouldHaveLength, 1)
		test.That(t, msgs[0].Kind, test.ShouldEqual, MsgIgnored)
		test.That(t, h.output().Stopped(), test.ShouldBeTrue)
		test.That(t, h.ctrl.Mode(), test.ShouldEqual, Halted)
	}

	// The notice is only sent once.
	h.clock.Add(time.Hour)
	test.That(t, h.ctrl.Tick(), test.ShouldBeEmpty)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
}

func TestSafetyStopDuringRun(t *testing.T) {
	h := newHarness(t, 10*time.Second)
	h.sensors.set(true, true)
	h.sendByte('1')
	h.ctrl.Tick()
	h.clock.Add(10 * time.Second)
	msgs := h.ctrl.Tick()
	test.That(t, msgs, test.ShouldHaveLength, 1)
	test.That(t, msgs[0].Kind, test.ShouldEqual, MsgSafetyStop)
	test.That(t, h.sensors.reads, test.ShouldEqual, 1)
	test.That(t, h.output().Stopped(), test.ShouldBeTrue)
}

func TestSetSpeeds(t *testing.T) {
	h := newHarness(t, 0)
	h.ctrl.SetSpeeds(Speeds{Base: 200, Turn: 50, Search: 100})
	h.sendByte('F')
	test.That(t, h.output().Speed, test.ShouldEqual, 200)
	h.sendByte('L')
	test.That(t, h.output().Speed, test.ShouldEqual, 50)
}
