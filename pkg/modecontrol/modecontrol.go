// Package modecontrol is the robot's operating mode state machine.
//
// A Controller is in exactly one of four modes:
//
//	Idle       -> Autonomous (start target) | Follow (follow, drive)
//	Autonomous -> Idle (cancel, stop follow, run deadline) | Follow (follow, drive)
//	Follow     -> Autonomous (start target) | Idle (stop follow)
//	any        -> Halted (safety deadline)
//
// Halted is terminal: the drive is held stopped and every command is ignored until the
// process restarts.  The controller is driven by a single owner that calls Handle for each
// received command and Tick once per control period; it does no locking of its own.
package modecontrol

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
)

type Mode int

const (
	Idle Mode = iota
	Autonomous
	Follow
	Halted
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Autonomous:
		return "autonomous"
	case Follow:
		return "follow"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Speeds are the PWM speeds (0-255) used by the control law and the drive commands.
type Speeds struct {
	// Base is used driving straight, both on the line and for F/B commands.
	Base int
	// Turn is used for pivot turns, both steering back onto the line and for L/R commands.
	Turn int
	// Search is the outer wheel speed of the soft turn used when the line is lost.
	Search int
}

type Config struct {
	Speeds Speeds
	// SafetyTimeout is measured from construction; once it passes the robot halts for good.
	// Zero disables the safety stop.
	SafetyTimeout time.Duration
}

type SensorReader interface {
	Read() (linesensor.State, error)
}

type Controller struct {
	clock   clock.Clock
	log     *zap.SugaredLogger
	drive   *drive.Drive
	sensors SensorReader
	speeds  Speeds

	mode           Mode
	target         command.Target
	runDeadline    time.Time
	safetyDeadline time.Time
	lastErrorSign  int
	lastSensors    linesensor.State
}

func New(config Config, d *drive.Drive, sensors SensorReader, clk clock.Clock, log *zap.SugaredLogger) *Controller {
	c := &Controller{
		clock:         clk,
		log:           log,
		drive:         d,
		sensors:       sensors,
		speeds:        config.Speeds,
		mode:          Idle,
		lastErrorSign: 1,
	}
	if config.SafetyTimeout > 0 {
		c.safetyDeadline = clk.Now().Add(config.SafetyTimeout)
	}
	d.Stop()
	return c
}

// SetSpeeds replaces the speeds used from the next drive action on.  Outputs already
// applied are not changed.
func (c *Controller) SetSpeeds(s Speeds) {
	c.speeds = s
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// Shutdown stops the motors.  The owner calls it once its loop has exited.
func (c *Controller) Shutdown() {
	c.log.Info("Zeroing motors")
	c.drive.Stop()
}

// State is a snapshot of the controller for status reporting.
type State struct {
	Mode           Mode
	Target         command.Target
	RunDeadline    time.Time
	Remaining      time.Duration
	SafetyDeadline time.Time
	LastErrorSign  int
	Drive          drive.Output
	Sensors        linesensor.State
	Speeds         Speeds
}

func (s State) String() string {
	str := fmt.Sprintf("Mode: %v", s.Mode)
	if s.Mode == Autonomous {
		str += fmt.Sprintf(" target %v remaining %.1f s", s.Target, s.Remaining.Seconds())
	}
	return str + fmt.Sprintf(" lastError=%+d drive=%v sensors=%v", s.LastErrorSign, s.Drive, s.Sensors)
}

func (c *Controller) State() State {
	s := State{
		Mode:           c.mode,
		SafetyDeadline: c.safetyDeadline,
		LastErrorSign:  c.lastErrorSign,
		Drive:          c.drive.Current(),
		Sensors:        c.lastSensors,
		Speeds:         c.speeds,
	}
	if c.mode == Autonomous {
		s.Target = c.target
		s.RunDeadline = c.runDeadline
		s.Remaining = c.runDeadline.Sub(c.clock.Now())
		if s.Remaining < 0 {
			s.Remaining = 0
		}
	}
	return s
}

// Handle applies one command and returns the messages to send back, in order.
func (c *Controller) Handle(cmd command.Command) []Message {
	if c.mode == Halted {
		if cmd.Kind == command.KindStatus {
			return []Message{{Kind: MsgStatus, Text: c.State().String()}}
		}
		c.log.Infow("Ignoring command while halted", "command", cmd)
		return []Message{{Kind: MsgIgnored, Text: fmt.Sprintf("Halted: ignoring %v", cmd)}}
	}

	var msgs []Message
	switch cmd.Kind {
	case command.KindStartTarget:
		msgs = c.startTarget(cmd.Target)
	case command.KindCancel:
		msgs = c.cancel()
	case command.KindEnterFollow:
		msgs = c.enterFollow()
	case command.KindExitFollow:
		msgs = c.exitFollow()
	case command.KindDrive:
		msgs = c.driveAction(cmd)
	case command.KindStatus:
		msgs = []Message{{Kind: MsgStatus, Text: c.State().String()}}
	case command.KindUnknown:
		c.log.Infow("Unknown command", "text", cmd.Text)
		msgs = []Message{{Kind: MsgUnknown, Text: "Unknown cmd (line): " + cmd.Text}}
	default:
		c.log.Warnw("Unhandled command kind", "command", cmd)
		msgs = []Message{{Kind: MsgUnknown, Text: fmt.Sprintf("Unknown cmd: %v", cmd)}}
	}

	if cmd.FromByte() {
		msgs = append(msgs, Message{Kind: MsgAck, Text: fmt.Sprintf("ACK: %c", cmd.Byte)})
	}
	return msgs
}

func (c *Controller) startTarget(t command.Target) []Message {
	if c.mode == Autonomous {
		c.log.Infow("Rejecting target while a run is active", "requested", t, "active", c.target)
		return []Message{{Kind: MsgRejected, Text: "Already executing; ignoring new command."}}
	}
	now := c.clock.Now()
	c.setMode(Autonomous)
	c.target = t
	c.runDeadline = now.Add(t.Duration)
	c.log.Infow("Starting run", "target", t, "duration", t.Duration, "deadline", c.runDeadline)
	return []Message{{
		Kind: MsgRunStarted,
		Text: fmt.Sprintf("Started run for target %d (%s) for %d s", t.Number, t.Name, int(t.Duration/time.Second)),
	}}
}

func (c *Controller) cancel() []Message {
	if c.mode != Autonomous {
		return []Message{{Kind: MsgRejected, Text: "No active execution to cancel."}}
	}
	c.drive.Stop()
	c.setMode(Idle)
	return []Message{{Kind: MsgNotice, Text: "Execution cancelled. Back to idle."}}
}

func (c *Controller) enterFollow() []Message {
	if c.mode == Autonomous {
		// The line following output must not carry over into remote control.
		c.drive.Stop()
	}
	c.setMode(Follow)
	return []Message{{Kind: MsgNotice, Text: "Follow mode enabled."}}
}

func (c *Controller) exitFollow() []Message {
	c.drive.Stop()
	c.setMode(Idle)
	return []Message{{Kind: MsgNotice, Text: "Follow mode disabled. Back to idle."}}
}

func (c *Controller) driveAction(cmd command.Command) []Message {
	c.setMode(Follow)
	switch cmd.Action {
	case command.Forward:
		c.drive.Forward(c.speeds.Base)
	case command.Backward:
		c.drive.Backward(c.speeds.Base)
	case command.Left:
		c.drive.PivotLeft(c.speeds.Turn)
	case command.Right:
		c.drive.PivotRight(c.speeds.Turn)
	case command.Stop:
		c.drive.Stop()
	default:
		c.log.Warnw("Unknown drive action, stopping", "action", cmd.Action)
		c.drive.Stop()
	}
	if cmd.FromByte() {
		// The ACK echo covers it.
		return nil
	}
	return []Message{{Kind: MsgAck, Text: fmt.Sprintf("ACK: %v", cmd.Action)}}
}

func (c *Controller) setMode(m Mode) {
	if m != Autonomous {
		c.target = command.Target{}
		c.runDeadline = time.Time{}
	}
	if m != c.mode {
		c.log.Infow("Mode change", "from", c.mode, "to", m)
	}
	c.mode = m
}

// Tick runs one control period.
func (c *Controller) Tick() []Message {
	now := c.clock.Now()
	var msgs []Message

	if c.mode != Halted && !c.safetyDeadline.IsZero() && !now.Before(c.safetyDeadline) {
		c.drive.Stop()
		c.setMode(Halted)
		c.log.Warnw("Safety timeout reached, halting", "deadline", c.safetyDeadline)
		msgs = append(msgs, Message{Kind: MsgSafetyStop, Text: "Stopped after configured timeout."})
	}

	switch c.mode {
	case Halted, Idle:
		if !c.drive.Current().Stopped() {
			c.drive.Stop()
		}
	case Follow:
		// Hold whatever the last drive command set.
	case Autonomous:
		c.followLine()
		if !now.Before(c.runDeadline) {
			c.log.Infow("Run finished", "target", c.target)
			c.drive.Stop()
			c.setMode(Idle)
			msgs = append(msgs, Message{
				Kind: MsgRunFinished,
				Text: "Timed run finished; now idle and listening for next command.",
			})
		}
	}
	return msgs
}

func (c *Controller) followLine() {
	s, err := c.sensors.Read()
	if err != nil {
		c.log.Errorw("Failed to read line sensors, holding output", "error", err)
		return
	}
	c.lastSensors = s

	switch {
	case s.LeftOnLine && s.RightOnLine:
		c.drive.Forward(c.speeds.Base)
	case s.LeftOnLine:
		c.drive.PivotLeft(c.speeds.Turn)
		c.lastErrorSign = -1
	case s.RightOnLine:
		c.drive.PivotRight(c.speeds.Turn)
		c.lastErrorSign = 1
	default:
		// Lost the line: sweep towards the side it was last seen on.
		if c.lastErrorSign <= 0 {
			c.drive.SoftTurnLeft(c.speeds.Search)
		} else {
			c.drive.SoftTurnRight(c.speeds.Search)
		}
	}
}
