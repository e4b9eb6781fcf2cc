package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/transport"
)

type DriveCommand struct{}

const maxReplies = 8

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	replyStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// driveKeys maps keys to the byte sent for them.
var driveKeys = map[string]byte{
	"up": 'F', "w": 'F',
	"down": 'B', "s": 'B',
	"left": 'L', "a": 'L',
	"right": 'R', "d": 'R',
	" ": 'S',
}

// driveLines maps keys to whole-line commands.
var driveLines = map[string]string{
	"f": "follow",
	"x": "stop follow",
	"c": "cancel",
	"t": "status",
}

type repliesMsg struct {
	sent    string
	replies []string
	err     error
}

type driveModel struct {
	ctx      context.Context
	client   *transport.Client
	last     string
	replies  []string
	quitting bool
}

func sendByte(ctx context.Context, c *transport.Client, b byte) tea.Cmd {
	return func() tea.Msg {
		replies, err := c.SendByte(ctx, b)
		return repliesMsg{sent: string(b), replies: replies, err: err}
	}
}

func sendLine(ctx context.Context, c *transport.Client, line string) tea.Cmd {
	return func() tea.Msg {
		replies, err := c.SendLine(ctx, line)
		return repliesMsg{sent: line, replies: replies, err: err}
	}
}

func (m driveModel) Init() tea.Cmd {
	return nil
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			// Leave the robot stopped.
			return m, tea.Sequence(sendByte(m.ctx, m.client, 'S'), tea.Quit)
		}
		if b, ok := driveKeys[key]; ok {
			return m, sendByte(m.ctx, m.client, b)
		}
		if line, ok := driveLines[key]; ok {
			return m, sendLine(m.ctx, m.client, line)
		}

	case repliesMsg:
		m.last = msg.sent
		for _, r := range msg.replies {
			m.addReply(r)
		}
		if msg.err != nil {
			m.addReply("error: " + msg.err.Error())
		}
	}
	return m, nil
}

func (m *driveModel) addReply(r string) {
	m.replies = append(m.replies, r)
	if len(m.replies) > maxReplies {
		m.replies = m.replies[len(m.replies)-maxReplies:]
	}
}

func (m driveModel) View() string {
	if m.quitting {
		return "Stopped.\n"
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Line bot drive"))
	if m.last != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  last sent: %q", m.last)))
	}
	sb.WriteString("\n\n")
	sb.WriteString(keyStyle.Render("arrows/wasd") + " drive  " +
		keyStyle.Render("space") + " stop  " +
		keyStyle.Render("f/x") + " follow on/off  " +
		keyStyle.Render("c") + " cancel  " +
		keyStyle.Render("t") + " status  " +
		keyStyle.Render("q") + " quit\n\n")

	lines := statusStyle.Render("No replies yet. Press 'f' to enter follow mode first.")
	if len(m.replies) > 0 {
		lines = strings.Join(m.replies, "\n")
	}
	sb.WriteString(replyStyle.Render(lines))
	sb.WriteString("\n")
	return sb.String()
}

func (c *DriveCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()

	p := tea.NewProgram(driveModel{ctx: ctx, client: client}, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
