package screen

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Size is the edge length of the square display, in pixels.
const Size = 128

// Status is what the display shows.
type Status struct {
	Mode        string
	Target      string
	Remaining   time.Duration
	LeftOnLine  bool
	RightOnLine bool
	Halted      bool

	BusVoltage float64
	// Charge is the battery state of charge in [0, 1].
	Charge float64
}

type Screen struct {
	lock   sync.Mutex
	status Status

	fb       io.WriteSeeker
	clock    clock.Clock
	interval time.Duration
	log      *zap.SugaredLogger
}

func Open(framebuffer string, interval time.Duration, clk clock.Clock, log *zap.SugaredLogger) (*Screen, error) {
	f, err := os.OpenFile(framebuffer, os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "opening framebuffer %s", framebuffer)
	}
	return New(f, interval, clk, log), nil
}

func New(fb io.WriteSeeker, interval time.Duration, clk clock.Clock, log *zap.SugaredLogger) *Screen {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Screen{
		fb:       fb,
		clock:    clk,
		interval: interval,
		log:      log,
	}
}

func (s *Screen) Update(status Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.status = status
}

func (s *Screen) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// Loop redraws the screen every interval until ctx is done, then blanks it.
func (s *Screen) Loop(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var blank [Size * Size * 2]byte
			if err := s.write(blank[:]); err != nil {
				s.log.Warnw("Failed to blank screen", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.Draw(); err != nil {
				s.log.Errorw("Screen failure", "error", err)
				return
			}
		}
	}
}

func (s *Screen) Draw() error {
	return s.write(ToRGB565(Render(s.Status())))
}

func (s *Screen) write(buf []byte) error {
	if _, err := s.fb.Seek(0, io.SeekStart); err != nil {
		return err
	}
	for i := 0; i < Size; i++ {
		if _, err := s.fb.Write(buf[i*Size*2 : (i+1)*Size*2]); err != nil {
			return err
		}
	}
	return nil
}

// Render draws the status page.
func Render(st Status) image.Image {
	dc := gg.NewContext(Size, Size)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGBA(1, 0.9, 0, 1)

	dc.DrawString(st.Mode, 4, 12)
	if st.Target != "" {
		dc.DrawString(st.Target, 4, 26)
		dc.DrawString(fmt.Sprintf("%.1fs", st.Remaining.Seconds()), 4, 40)
	}

	drawSensor(dc, 12, 56, st.LeftOnLine)
	drawSensor(dc, 40, 56, st.RightOnLine)

	dc.Push()
	dc.Translate(90, 5)
	dc.DrawString("BATT", 0, 10)
	drawPowerBar(dc, st.BusVoltage, st.Charge)
	dc.Pop()

	if st.Halted {
		dc.Push()
		dc.Translate(24, 100)
		DrawWarning(dc)
		dc.Pop()
	}
	return dc.Image()
}

func drawSensor(dc *gg.Context, x, y float64, onLine bool) {
	dc.DrawCircle(x, y, 8)
	if onLine {
		dc.Fill()
	} else {
		dc.Stroke()
	}
}

func drawPowerBar(dc *gg.Context, voltage, charge float64) {
	dc.Push()
	defer dc.Pop()
	// Draw the larger power bar at the bottom. Colour depends on charge level.
	if charge < 0.1 {
		dc.SetRGBA(1, 0.2, 0, 1)
	}
	dc.DrawRectangle(0, 70, 30, 10)
	for n := 2; n < 13; n++ {
		if charge >= (float64(n) / 13) {
			dc.DrawRectangle(2, 75-float64(n)*5, 26, 3)
		}
	}
	dc.Fill()
	dc.DrawString(fmt.Sprintf("%.1fv", voltage), -2, 93)
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
}

// ToRGB565 converts a Size x Size image to the panel's framebuffer layout.  The panel is
// mounted rotated, so image columns become framebuffer rows.
func ToRGB565(img image.Image) []byte {
	buf := make([]byte, Size*Size*2)
	b := img.Bounds()
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(bl >> (16 - 5))

			buf[(Size-1-y)*2+x*Size*2+1] = (rb << 3) | (gb >> 3)
			buf[(Size-1-y)*2+x*Size*2] = bb | (gb << 5)
		}
	}
	return buf
}
