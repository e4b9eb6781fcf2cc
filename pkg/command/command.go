package command

import (
	"fmt"
	"time"
)

// Target is a named destination reached by following the line for a fixed time.
type Target struct {
	Number   int
	Name     string
	Duration time.Duration
	Aliases  []string
}

func (t Target) String() string {
	return fmt.Sprintf("%d (%s)", t.Number, t.Name)
}

type Kind int

const (
	KindUnknown Kind = iota
	KindStartTarget
	KindCancel
	KindEnterFollow
	KindExitFollow
	KindDrive
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindStartTarget:
		return "start-target"
	case KindCancel:
		return "cancel"
	case KindEnterFollow:
		return "enter-follow"
	case KindExitFollow:
		return "exit-follow"
	case KindDrive:
		return "drive"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type DriveAction int

const (
	Forward DriveAction = iota
	Backward
	Left
	Right
	Stop
)

func (a DriveAction) String() string {
	switch a {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("drive(%d)", int(a))
	}
}

// Command is a normalized request to the mode controller.  Only the fields relevant to
// Kind are set.
type Command struct {
	Kind   Kind
	Target Target
	Action DriveAction
	// Text holds the normalized line for unknown commands.
	Text string
	// Byte is the control byte when the command arrived on the single-byte path; those
	// commands are echoed back as "ACK: <byte>".
	Byte byte
}

func (c Command) FromByte() bool {
	return c.Byte != 0
}

func (c Command) String() string {
	switch c.Kind {
	case KindStartTarget:
		return fmt.Sprintf("start-target(%v)", c.Target)
	case KindDrive:
		return fmt.Sprintf("drive(%v)", c.Action)
	case KindUnknown:
		return fmt.Sprintf("unknown(%q)", c.Text)
	default:
		return c.Kind.String()
	}
}

func StartTarget(t Target) Command {
	return Command{Kind: KindStartTarget, Target: t}
}

func Drive(a DriveAction) Command {
	return Command{Kind: KindDrive, Action: a}
}

func Cancel() Command      { return Command{Kind: KindCancel} }
func EnterFollow() Command { return Command{Kind: KindEnterFollow} }
func ExitFollow() Command  { return Command{Kind: KindExitFollow} }
func Status() Command      { return Command{Kind: KindStatus} }

func Unknown(text string) Command {
	return Command{Kind: KindUnknown, Text: text}
}
