package screen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

func TestToRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})

	buf := ToRGB565(img)
	test.That(t, buf, test.ShouldHaveLength, Size*Size*2)

	// (0,0) lands at the end of the first framebuffer row.
	red := (Size - 1) * 2
	test.That(t, buf[red+1], test.ShouldEqual, byte(0xf8))
	test.That(t, buf[red], test.ShouldEqual, byte(0x00))

	green := (Size-1)*2 + Size*2
	test.That(t, buf[green+1], test.ShouldEqual, byte(0x07))
	test.That(t, buf[green], test.ShouldEqual, byte(0xe0))

	blue := (Size - 2) * 2
	test.That(t, buf[blue+1], test.ShouldEqual, byte(0x00))
	test.That(t, buf[blue], test.ShouldEqual, byte(0x1f))
}

func countLit(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r|g|bl != 0 {
				n++
			}
		}
	}
	return n
}

func TestRender(t *testing.T) {
	idle := Render(Status{Mode: "idle", BusVoltage: 8.1, Charge: 0.9})
	test.That(t, idle.Bounds(), test.ShouldResemble, image.Rect(0, 0, Size, Size))
	test.That(t, countLit(idle), test.ShouldBeGreaterThan, 0)

	halted := Render(Status{Mode: "halted", Halted: true, BusVoltage: 8.1, Charge: 0.9})
	test.That(t, countLit(halted), test.ShouldBeGreaterThan, countLit(idle))
}

type memFB struct {
	bytes.Buffer
	seeks int32
}

func (m *memFB) Seek(offset int64, whence int) (int64, error) {
	atomic.AddInt32(&m.seeks, 1)
	m.Reset()
	return 0, nil
}

var _ io.WriteSeeker = (*memFB)(nil)

func TestLoopDrawsAndBlanks(t *testing.T) {
	fb := &memFB{}
	clk := clock.NewMock()
	s := New(fb, 100*time.Millisecond, clk, zaptest.NewLogger(t).Sugar())
	s.Update(Status{Mode: "follow", LeftOnLine: true})
	test.That(t, s.Status().Mode, test.ShouldEqual, "follow")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Loop(ctx)
		close(done)
	}()

	// Wait for the ticker to be registered before moving time on.
	for atomic.LoadInt32(&fb.seeks) == 0 {
		clk.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	test.That(t, fb.Len(), test.ShouldEqual, Size*Size*2)
	test.That(t, bytes.Count(fb.Bytes(), []byte{0}), test.ShouldEqual, Size*Size*2)
}
