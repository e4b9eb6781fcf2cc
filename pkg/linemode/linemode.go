// Package linemode runs the mode controller.  It owns the controller and is the only
// thing that touches it: each tick it drains the bytes and commands that have arrived,
// hands them to the controller in order, runs one control step and reports back.
package linemode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/ina219"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/modecontrol"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/screen"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/transport"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/tunable"
)

const (
	DefaultTickInterval = 20 * time.Millisecond

	batteryInterval = time.Second
	inputBuffer     = 64
)

type LineWriter interface {
	WriteLine(line string) error
}

type Player interface {
	Play(path string)
}

type Display interface {
	Update(status screen.Status)
}

type Battery interface {
	Read() (ina219.Reading, error)
	Charge(r ina219.Reading) float64
}

// SpeedTunables are live-adjustable replacements for the configured speeds.
type SpeedTunables struct {
	Base, Turn, Search *tunable.Tunable
}

func NewSpeedTunables(t *tunable.Tunables, s modecontrol.Speeds) *SpeedTunables {
	return &SpeedTunables{
		Base:   t.Create("base speed", s.Base, 0, 255),
		Turn:   t.Create("turn speed", s.Turn, 0, 255),
		Search: t.Create("search speed", s.Search, 0, 255),
	}
}

func (s *SpeedTunables) Speeds() modecontrol.Speeds {
	return modecontrol.Speeds{Base: s.Base.Get(), Turn: s.Turn.Get(), Search: s.Search.Get()}
}

// Options are the optional collaborators; any of them may be left unset.
type Options struct {
	TickInterval time.Duration
	Speeds       *SpeedTunables
	Joystick     *joystick.Mapper
	Player       Player
	// Cues maps message kinds to the sound played when one is sent.
	Cues    map[modecontrol.MessageKind]string
	Display Display
	Battery Battery
}

type LineMode struct {
	ctrl      *modecontrol.Controller
	assembler *transport.Assembler
	sink      LineWriter
	clock     clock.Clock
	log       *zap.SugaredLogger
	opts      Options

	input    chan []byte
	commands chan command.Command

	lastBatteryRead time.Time
	battery         ina219.Reading
	charge          float64

	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(
	ctrl *modecontrol.Controller,
	assembler *transport.Assembler,
	sink LineWriter,
	clk clock.Clock,
	log *zap.SugaredLogger,
	opts Options,
) *LineMode {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &LineMode{
		ctrl:      ctrl,
		assembler: assembler,
		sink:      sink,
		clock:     clk,
		log:       log,
		opts:      opts,
		input:     make(chan []byte, inputBuffer),
		commands:  make(chan command.Command, inputBuffer),
	}
}

func (m *LineMode) Name() string {
	return "Line mode"
}

// Input is where the transport pumps raw bytes.
func (m *LineMode) Input() chan<- []byte {
	return m.input
}

// Commands takes already-parsed commands, from the joystick for example.
func (m *LineMode) Commands() chan<- command.Command {
	return m.commands
}

func (m *LineMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

// Stop stops the loop and waits for it to zero the motors.
func (m *LineMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

// OnJoystickEvent maps a pad event and queues the resulting command.
func (m *LineMode) OnJoystickEvent(event *joystick.Event) {
	if m.opts.Joystick == nil {
		return
	}
	if cmd, ok := m.opts.Joystick.Map(event); ok {
		select {
		case m.commands <- cmd:
		default:
			m.log.Warnw("Command queue full, dropping joystick command", "command", cmd)
		}
	}
}

func (m *LineMode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	defer m.ctrl.Shutdown()

	m.SendBanner()
	ticker := m.clock.Ticker(m.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Step()
		}
	}
}

// Banner returns the lines sent when the robot comes up.
func Banner(targets []command.Target) []string {
	names := make([]string, len(targets))
	numbers := make([]string, len(targets))
	for i, t := range targets {
		names[i] = "'" + t.Name + "'"
		numbers[i] = fmt.Sprintf("'%d'", t.Number)
	}
	return []string{
		"Line follower + follow mode ready.",
		fmt.Sprintf("Robot is IDLE. Send %s or %s to trigger runs.",
			strings.Join(names, "/"), strings.Join(numbers, "/")),
		"Type 'CANCEL' to stop an ongoing run. Send 'FOLLOW' to enable follow mode (F/B/L/R/S).",
	}
}

func (m *LineMode) SendBanner() {
	for _, line := range Banner(m.assembler.Targets()) {
		m.writeLine(line)
	}
}

// Step runs one tick: everything already received is handled before the control step.
func (m *LineMode) Step() {
	if m.opts.Speeds != nil {
		m.ctrl.SetSpeeds(m.opts.Speeds.Speeds())
	}
	m.drain()
	m.send(m.ctrl.Tick())
	m.updateDisplay()
}

func (m *LineMode) drain() {
	for {
		select {
		case chunk := <-m.input:
			for _, cmd := range m.assembler.FeedAll(chunk) {
				m.handle(cmd)
			}
		case cmd := <-m.commands:
			m.handle(cmd)
		default:
			return
		}
	}
}

func (m *LineMode) handle(cmd command.Command) {
	m.log.Debugw("Command", "command", cmd)
	m.send(m.ctrl.Handle(cmd))
}

func (m *LineMode) send(msgs []modecontrol.Message) {
	for _, msg := range msgs {
		text := msg.Text
		if msg.Kind == modecontrol.MsgStatus && m.opts.Battery != nil {
			m.readBattery(true)
			text += fmt.Sprintf(" battery=%v charge=%.0f%%", m.battery, m.charge*100)
		}
		m.writeLine(text)
		if cue, ok := m.opts.Cues[msg.Kind]; ok && m.opts.Player != nil {
			m.opts.Player.Play(cue)
		}
	}
}

func (m *LineMode) writeLine(line string) {
	if err := m.sink.WriteLine(line); err != nil {
		m.log.Warnw("Failed to write to transport", "line", line, "error", err)
	}
}

func (m *LineMode) readBattery(force bool) {
	now := m.clock.Now()
	if !force && now.Sub(m.lastBatteryRead) < batteryInterval {
		return
	}
	m.lastBatteryRead = now
	r, err := m.opts.Battery.Read()
	if err != nil {
		m.log.Warnw("Failed to read battery", "error", err)
		return
	}
	m.battery = r
	m.charge = m.opts.Battery.Charge(r)
}

func (m *LineMode) updateDisplay() {
	if m.opts.Display == nil {
		return
	}
	if m.opts.Battery != nil {
		m.readBattery(false)
	}
	st := m.ctrl.State()
	status := screen.Status{
		Mode:        st.Mode.String(),
		LeftOnLine:  st.Sensors.LeftOnLine,
		RightOnLine: st.Sensors.RightOnLine,
		Halted:      st.Mode == modecontrol.Halted,
		BusVoltage:  m.battery.BusVoltage,
		Charge:      m.charge,
	}
	if st.Mode == modecontrol.Autonomous {
		status.Target = st.Target.Name
		status.Remaining = st.Remaining
	}
	m.opts.Display.Update(status)
}
