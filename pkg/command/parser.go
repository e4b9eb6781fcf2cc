package command

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	followWords     = []string{"FOLLOW", "FOLLOW ME", "START FOLLOW"}
	stopFollowWords = []string{"STOP FOLLOW", "STOPFOLLOW", "END FOLLOW"}
)

const (
	cancelWord = "CANCEL"
	statusWord = "STATUS"
)

var driveBytes = map[byte]DriveAction{
	'F': Forward,
	'B': Backward,
	'L': Left,
	'R': Right,
	'S': Stop,
}

// Parser maps raw input to commands.  It holds no state beyond its synonym table.
type Parser struct {
	targets []Target
	lines   map[string]Command
}

// NewParser builds the synonym table for the given targets, numbered from 1.  Up to nine
// targets are supported so that each can be started by a single digit.
func NewParser(targets []Target) (*Parser, error) {
	if len(targets) == 0 || len(targets) > 9 {
		return nil, errors.Errorf("need between 1 and 9 targets, got %d", len(targets))
	}
	p := &Parser{
		lines: map[string]Command{},
	}
	add := func(word string, c Command) error {
		word = Normalize(word)
		if word == "" {
			return nil
		}
		if existing, ok := p.lines[word]; ok && existing.String() != c.String() {
			return errors.Errorf("%q is used by both %v and %v", word, existing, c)
		}
		p.lines[word] = c
		return nil
	}

	for _, w := range followWords {
		_ = add(w, EnterFollow())
	}
	for _, w := range stopFollowWords {
		_ = add(w, ExitFollow())
	}
	_ = add(cancelWord, Cancel())
	_ = add(statusWord, Status())

	for i, t := range targets {
		t.Number = i + 1
		if t.Name == "" {
			return nil, errors.Errorf("target %d has no name", t.Number)
		}
		p.targets = append(p.targets, t)
		c := StartTarget(t)
		name := Normalize(t.Name)
		words := []string{
			strconv.Itoa(t.Number),
			name,
			"GO TO " + name,
			"GOTO " + name,
			"GOTO" + strings.ReplaceAll(name, " ", ""),
		}
		words = append(words, t.Aliases...)
		for _, w := range words {
			if err := add(w, c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Parser) Targets() []Target {
	return p.targets
}

// ParseByte handles the single-byte path.  Target digits and upper case drive letters
// produce a command; any other byte returns false and is left to line accumulation.
func (p *Parser) ParseByte(b byte) (Command, bool) {
	if b >= '1' && b <= '9' {
		idx := int(b - '1')
		if idx < len(p.targets) {
			c := StartTarget(p.targets[idx])
			c.Byte = b
			return c, true
		}
		return Command{}, false
	}
	if a, ok := driveBytes[b]; ok {
		c := Drive(a)
		c.Byte = b
		return c, true
	}
	return Command{}, false
}

// ParseLine handles a complete text line.  Matching ignores case and surrounding or
// repeated whitespace.  Blank lines return false.
func (p *Parser) ParseLine(line string) (Command, bool) {
	norm := Normalize(line)
	if norm == "" {
		return Command{}, false
	}
	if c, ok := p.lines[norm]; ok {
		return c, true
	}
	return Unknown(norm), true
}

func Normalize(line string) string {
	return strings.Join(strings.Fields(strings.ToUpper(line)), " ")
}
