package transport

import (
	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
)

// MaxLineLength bounds the line buffer.  A longer line is reported as unknown and dropped.
const MaxLineLength = 64

// Assembler turns the incoming byte stream into commands.  Command bytes act immediately
// and never reach the line buffer; everything else printable is buffered until CR or LF.
type Assembler struct {
	parser *command.Parser
	buf    []byte
}

func NewAssembler(parser *command.Parser) *Assembler {
	return &Assembler{
		parser: parser,
		buf:    make([]byte, 0, MaxLineLength),
	}
}

// Feed consumes one byte and returns the command it completes, if any.
func (a *Assembler) Feed(b byte) (command.Command, bool) {
	if cmd, ok := a.parser.ParseByte(b); ok {
		return cmd, true
	}
	switch {
	case b == '\r' || b == '\n':
		line := string(a.buf)
		a.buf = a.buf[:0]
		return a.parser.ParseLine(line)
	case b < 0x20 || b > 0x7e:
		// Not printable.
		return command.Command{}, false
	}
	if len(a.buf) >= MaxLineLength {
		text := command.Normalize(string(a.buf))
		a.buf = a.buf[:0]
		return command.Unknown(text), true
	}
	a.buf = append(a.buf, b)
	return command.Command{}, false
}

// FeedAll feeds every byte of p, in order, and returns the commands they produced.
func (a *Assembler) FeedAll(p []byte) []command.Command {
	var cmds []command.Command
	for _, b := range p {
		if cmd, ok := a.Feed(b); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Pending returns the partial line buffered so far.
func (a *Assembler) Pending() string {
	return string(a.buf)
}

// Targets returns the parser's target table.
func (a *Assembler) Targets() []command.Target {
	return a.parser.Targets()
}
