package transport

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AlreadyExecuting is the text the robot replies with when it rejects a new target.
const AlreadyExecuting = "Already executing"

const DefaultReplyWindow = 500 * time.Millisecond

// Client is the host side of the link.  It sends lines or bytes and collects whatever the
// robot says back until the link has been quiet for the reply window.
type Client struct {
	w     io.Writer
	lines chan string
	// readErr is set before lines is closed.
	readErr error
	window  time.Duration
	clock   clock.Clock
	log     *zap.SugaredLogger
}

func NewClient(rw io.ReadWriter, window time.Duration, clk clock.Clock, log *zap.SugaredLogger) *Client {
	if window <= 0 {
		window = DefaultReplyWindow
	}
	c := &Client{
		w:      rw,
		lines:  make(chan string, 64),
		window: window,
		clock:  clk,
		log:    log,
	}
	go c.readLoop(rw)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	s := bufio.NewScanner(patientReader{r})
	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r")
		if line == "" {
			continue
		}
		c.lines <- line
	}
	err := s.Err()
	if err == nil {
		err = io.EOF
	}
	c.readErr = err
	close(c.lines)
}

// patientReader hides the empty reads of a port with a read timeout, which bufio.Scanner
// would otherwise give up on.
type patientReader struct {
	io.Reader
}

func (p patientReader) Read(b []byte) (int, error) {
	for {
		n, err := p.Reader.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Lines exposes every reply line, for callers that just want to listen.
func (c *Client) Lines() <-chan string {
	return c.lines
}

func (c *Client) SendLine(ctx context.Context, line string) ([]string, error) {
	c.log.Debugw("Sending line", "line", line)
	if _, err := io.WriteString(c.w, line+"\n"); err != nil {
		return nil, errors.Wrap(err, "sending line")
	}
	return c.collect(ctx)
}

func (c *Client) SendByte(ctx context.Context, b byte) ([]string, error) {
	c.log.Debugw("Sending byte", "byte", string(b))
	if _, err := c.w.Write([]byte{b}); err != nil {
		return nil, errors.Wrap(err, "sending byte")
	}
	return c.collect(ctx)
}

// Dispatch sends a target line.  If the robot is busy with another run, it cancels that
// run and sends the line once more.
func (c *Client) Dispatch(ctx context.Context, line string) ([]string, error) {
	replies, err := c.SendLine(ctx, line)
	if err != nil || !containsReply(replies, AlreadyExecuting) {
		return replies, err
	}
	c.log.Infow("Robot busy; cancelling current run and resending", "line", line)
	more, err := c.SendLine(ctx, "cancel")
	replies = append(replies, more...)
	if err != nil {
		return replies, err
	}
	more, err = c.SendLine(ctx, line)
	return append(replies, more...), err
}

func (c *Client) collect(ctx context.Context) ([]string, error) {
	var replies []string
	for {
		timer := c.clock.Timer(c.window)
		select {
		case line, ok := <-c.lines:
			timer.Stop()
			if !ok {
				return replies, c.readErr
			}
			replies = append(replies, line)
		case <-timer.C:
			return replies, nil
		case <-ctx.Done():
			timer.Stop()
			return replies, ctx.Err()
		}
	}
}

func containsReply(replies []string, s string) bool {
	for _, r := range replies {
		if strings.Contains(r, s) {
			return true
		}
	}
	return false
}
