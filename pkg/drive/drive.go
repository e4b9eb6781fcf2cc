package drive

import (
	"fmt"

	"go.uber.org/zap"
)

// MaxSpeed is the largest speed a channel accepts; it maps to full PWM duty.
const MaxSpeed = 255

type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Actuator is a two channel motor driver.  Speed 0 must release both direction lines and
// zero the power output, whatever the forward flag says.
type Actuator interface {
	SetChannel(side Side, speed int, forward bool) error
}

// Action names the maneuver most recently applied to the drive.
type Action int

const (
	ActionStop Action = iota
	ActionForward
	ActionBackward
	ActionPivotLeft
	ActionPivotRight
	ActionSoftLeft
	ActionSoftRight
	ActionManual
)

func (a Action) String() string {
	switch a {
	case ActionStop:
		return "stop"
	case ActionForward:
		return "forward"
	case ActionBackward:
		return "backward"
	case ActionPivotLeft:
		return "pivot-left"
	case ActionPivotRight:
		return "pivot-right"
	case ActionSoftLeft:
		return "soft-left"
	case ActionSoftRight:
		return "soft-right"
	case ActionManual:
		return "manual"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

type ChannelOutput struct {
	Speed   int
	Forward bool
}

// Output is the last commanded state of both channels.
type Output struct {
	Action Action
	Speed  int
	Left   ChannelOutput
	Right  ChannelOutput
}

func (o Output) Stopped() bool {
	return o.Left.Speed == 0 && o.Right.Speed == 0
}

func (o Output) String() string {
	return fmt.Sprintf("%v(%d) l=%d/%v r=%d/%v",
		o.Action, o.Speed, o.Left.Speed, o.Left.Forward, o.Right.Speed, o.Right.Forward)
}

// Drive expresses the maneuvers of a differential drive robot as pairs of channel
// settings and remembers what it last commanded.  It is not safe for concurrent use.
type Drive struct {
	actuator Actuator
	log      *zap.SugaredLogger

	current Output
}

func New(actuator Actuator, log *zap.SugaredLogger) *Drive {
	return &Drive{
		actuator: actuator,
		log:      log,
	}
}

func (d *Drive) Current() Output {
	return d.current
}

// SetChannel sets a single side.  Hardware errors are logged rather than returned; the
// stored output always reflects what was asked for.
func (d *Drive) SetChannel(side Side, speed int, forward bool) {
	d.setChannel(side, speed, forward)
	d.current.Action = ActionManual
	d.current.Speed = 0
}

func (d *Drive) setChannel(side Side, speed int, forward bool) {
	out := ChannelOutput{Speed: clampSpeed(speed), Forward: forward}
	if out.Speed == 0 {
		out = ChannelOutput{}
	}
	switch side {
	case Left:
		d.current.Left = out
	case Right:
		d.current.Right = out
	default:
		d.log.Warnw("Ignoring unknown drive side", "side", side)
		return
	}
	if err := d.actuator.SetChannel(side, out.Speed, out.Forward); err != nil {
		d.log.Errorw("Failed to set motor channel", "side", side, "speed", out.Speed, "error", err)
	}
}

func (d *Drive) apply(action Action, speed int, left, right ChannelOutput) {
	d.setChannel(Left, left.Speed, left.Forward)
	d.setChannel(Right, right.Speed, right.Forward)
	d.current.Action = action
	d.current.Speed = clampSpeed(speed)
}

func (d *Drive) Forward(speed int) {
	d.apply(ActionForward, speed, ChannelOutput{speed, true}, ChannelOutput{speed, true})
}

func (d *Drive) Backward(speed int) {
	d.apply(ActionBackward, speed, ChannelOutput{speed, false}, ChannelOutput{speed, false})
}

func (d *Drive) Stop() {
	d.apply(ActionStop, 0, ChannelOutput{}, ChannelOutput{})
}

// PivotLeft turns on the spot: left side reverse, right side forward.
func (d *Drive) PivotLeft(speed int) {
	d.apply(ActionPivotLeft, speed, ChannelOutput{speed, false}, ChannelOutput{speed, true})
}

func (d *Drive) PivotRight(speed int) {
	d.apply(ActionPivotRight, speed, ChannelOutput{speed, true}, ChannelOutput{speed, false})
}

// SoftTurnLeft runs the outer (right) side at speed and the inner side at half of it.
func (d *Drive) SoftTurnLeft(speed int) {
	speed = clampSpeed(speed)
	d.apply(ActionSoftLeft, speed, ChannelOutput{speed / 2, true}, ChannelOutput{speed, true})
}

func (d *Drive) SoftTurnRight(speed int) {
	speed = clampSpeed(speed)
	d.apply(ActionSoftRight, speed, ChannelOutput{speed, true}, ChannelOutput{speed / 2, true})
}

func clampSpeed(speed int) int {
	if speed <= 0 {
		return 0
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

func Dummy() Actuator {
	return &dummyActuator{}
}

type dummyActuator struct {
}

func (a *dummyActuator) SetChannel(side Side, speed int, forward bool) error {
	fmt.Printf("Dummy drive setting %v: speed=%d forward=%v\n", side, speed, forward)
	return nil
}
