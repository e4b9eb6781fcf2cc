package joystick

import (
	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/tunable"
)

// Mapper turns pad events into robot commands:
//
//	D-pad            drive forward/backward/left/right, stop on release
//	Square/Triangle/Circle   targets 1, 2 and 3
//	Cross            cancel
//	Options/Share    enter/exit follow mode
//	PS               status
//	L1/R1            select the previous/next tunable
//	L2/R2            nudge the selected tunable down/up
type Mapper struct {
	targets  []command.Target
	tunables *tunable.Tunables
	step     int
}

func NewMapper(targets []command.Target, tunables *tunable.Tunables, step int) *Mapper {
	if step <= 0 {
		step = 1
	}
	return &Mapper{targets: targets, tunables: tunables, step: step}
}

var targetButtons = map[uint8]int{
	ButtonSquare:   0,
	ButtonTriangle: 1,
	ButtonCircle:   2,
}

// Map returns the command for the event, if it maps to one.  Tunable buttons act on the
// tunables directly and return no command.
func (m *Mapper) Map(e *Event) (command.Command, bool) {
	if e.Init {
		return command.Command{}, false
	}
	switch e.Type {
	case EventTypeAxis:
		return m.mapAxis(e)
	case EventTypeButton:
		if e.Value != 1 {
			return command.Command{}, false
		}
		return m.mapButton(e)
	}
	return command.Command{}, false
}

func (m *Mapper) mapAxis(e *Event) (command.Command, bool) {
	switch e.Number {
	case AxisDPadY:
		switch {
		case e.Value < 0:
			return command.Drive(command.Forward), true
		case e.Value > 0:
			return command.Drive(command.Backward), true
		}
	case AxisDPadX:
		switch {
		case e.Value < 0:
			return command.Drive(command.Left), true
		case e.Value > 0:
			return command.Drive(command.Right), true
		}
	default:
		return command.Command{}, false
	}
	return command.Drive(command.Stop), true
}

func (m *Mapper) mapButton(e *Event) (command.Command, bool) {
	if idx, ok := targetButtons[e.Number]; ok {
		if idx >= len(m.targets) {
			return command.Command{}, false
		}
		return command.StartTarget(m.targets[idx]), true
	}
	switch e.Number {
	case ButtonCross:
		return command.Cancel(), true
	case ButtonOptions:
		return command.EnterFollow(), true
	case ButtonShare:
		return command.ExitFollow(), true
	case ButtonPS:
		return command.Status(), true
	}
	if m.tunables == nil || m.tunables.Current() == nil {
		return command.Command{}, false
	}
	switch e.Number {
	case ButtonL1:
		m.tunables.SelectPrev()
	case ButtonR1:
		m.tunables.SelectNext()
	case ButtonL2:
		m.tunables.Current().Add(-m.step)
	case ButtonR2:
		m.tunables.Current().Add(m.step)
	}
	return command.Command{}, false
}
