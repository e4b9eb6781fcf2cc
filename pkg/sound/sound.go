package sound

import (
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const queueTimeout = 10 * time.Millisecond

// Player plays short WAV cues on a background goroutine.  A new cue cuts off the one
// that is playing.
type Player struct {
	soundsToPlay chan string
	done         chan struct{}
	closeOnce    sync.Once
	log          *zap.SugaredLogger
}

type backend interface {
	play(path string) error
	stop()
}

// New opens the speaker.  If that fails the player still works but only logs.
func New(log *zap.SugaredLogger) *Player {
	var b backend
	sp, err := newSpeaker()
	if err != nil {
		log.Warnw("Failed to open speaker", "error", err)
		b = &logOnly{log: log}
	} else {
		b = sp
	}
	return newPlayer(b, log)
}

func newPlayer(b backend, log *zap.SugaredLogger) *Player {
	p := &Player{
		soundsToPlay: make(chan string, 4),
		done:         make(chan struct{}),
		log:          log,
	}
	go p.loop(b)
	return p
}

func (p *Player) loop(b backend) {
	defer close(p.done)
	defer b.stop()
	for soundToPlay := range p.soundsToPlay {
		b.stop()
		if err := b.play(soundToPlay); err != nil {
			p.log.Warnw("Failed to play sound", "path", soundToPlay, "error", err)
		}
	}
}

// Play queues a cue.  It never blocks the caller for long; if the player is busy
// starting another cue this one is dropped.
func (p *Player) Play(path string) {
	if path == "" {
		return
	}
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	select {
	case p.soundsToPlay <- path:
	case <-time.After(queueTimeout):
		p.log.Debugw("Timed out trying to play sound", "path", path)
	}
}

func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.soundsToPlay)
	})
	<-p.done
}

type speakerBackend struct {
	ctrl   *beep.Ctrl
	stream beep.StreamSeekCloser
}

func newSpeaker() (*speakerBackend, error) {
	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		return nil, errors.Wrap(err, "initialising speaker")
	}
	return &speakerBackend{}, nil
}

func (s *speakerBackend) play(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening sound")
	}
	stream, _, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "decoding sound")
	}
	s.stream = stream
	s.ctrl = &beep.Ctrl{Streamer: stream}
	speaker.Play(s.ctrl)
	return nil
}

func (s *speakerBackend) stop() {
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		s.ctrl.Streamer = nil
		speaker.Unlock()
		s.ctrl = nil
	}
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
}

type logOnly struct {
	log *zap.SugaredLogger
}

func (l *logOnly) play(path string) error {
	l.log.Infow("Unable to play", "path", path)
	return nil
}

func (l *logOnly) stop() {}
