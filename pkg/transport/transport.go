// Package transport carries bytes between the robot and whatever is talking to it: a
// serial link to the host, a pty when running the simulator, or plain stdin/stdout.
package transport

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kr/pty"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// LineTerminator ends every line written to a Sink.
const LineTerminator = "\r\n"

// Sink writes acknowledgement lines.  It is safe for concurrent use.
type Sink struct {
	lock sync.Mutex
	w    io.Writer
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) WriteLine(line string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := io.WriteString(s.w, line+LineTerminator)
	return err
}

// Pump copies chunks read from r onto out until r fails or ctx is done.  Readers with a
// read timeout may return (0, nil); that just gives Pump a chance to check ctx.
func Pump(ctx context.Context, r io.Reader, out chan<- []byte) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading transport")
		}
	}
}

// PollInterval is the read timeout applied to serial ports so that Pump notices
// cancellation.
const PollInterval = 100 * time.Millisecond

func OpenSerial(device string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", device)
	}
	if err := p.SetReadTimeout(PollInterval); err != nil {
		_ = p.Close()
		return nil, errors.Wrapf(err, "setting read timeout on %s", device)
	}
	return p, nil
}

// PTY is a pseudo-terminal pair; the robot owns the master side and a client opens
// SlavePath as if it were the serial port.
type PTY struct {
	Master *os.File
	slave  *os.File
}

func OpenPTY() (*PTY, error) {
	m, s, err := pty.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening pty")
	}
	return &PTY{Master: m, slave: s}, nil
}

func (p *PTY) SlavePath() string {
	return p.slave.Name()
}

func (p *PTY) Read(b []byte) (int, error) {
	return p.Master.Read(b)
}

func (p *PTY) Write(b []byte) (int, error) {
	return p.Master.Write(b)
}

func (p *PTY) Close() error {
	err := p.Master.Close()
	if serr := p.slave.Close(); err == nil {
		err = serr
	}
	return err
}

// Stdio joins stdin and stdout for running without a serial link.
type Stdio struct{}

func (Stdio) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (Stdio) Write(b []byte) (int, error) { return os.Stdout.Write(b) }
func (Stdio) Close() error                { return nil }
