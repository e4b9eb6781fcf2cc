// Package qrfollow steers the robot towards a QR code held in front of its camera.  It
// talks to the robot in follow mode, one drive byte per frame: F when the code is roughly
// ahead, L or R to turn towards it and S when no code is in view.
package qrfollow

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultDeadband = 50

	Forward byte = 'F'
	Left    byte = 'L'
	Right   byte = 'R'
	Stop    byte = 'S'
)

// Detection is the result of looking for a code in one frame.
type Detection struct {
	Found bool
	// Corners of the code's bounding quadrilateral, in pixels.
	Corners []image.Point
	Data    string
	// FrameWidth is the width of the frame the code was found in.
	FrameWidth int
}

// Center returns the mean of the corners.
func (d Detection) Center() image.Point {
	if len(d.Corners) == 0 {
		return image.Point{}
	}
	var sum image.Point
	for _, p := range d.Corners {
		sum = sum.Add(p)
	}
	return sum.Div(len(d.Corners))
}

// Decide picks the drive byte for a detection.
func Decide(d Detection, deadband int) byte {
	if !d.Found || len(d.Corners) == 0 {
		return Stop
	}
	mid := d.FrameWidth / 2
	x := d.Center().X
	switch {
	case x < mid-deadband:
		return Left
	case x > mid+deadband:
		return Right
	default:
		return Forward
	}
}

// Camera yields one detection per call, blocking until the next frame.
type Camera interface {
	Next() (Detection, error)
}

type Follower struct {
	camera   Camera
	robot    io.Writer
	deadband int
	log      *zap.SugaredLogger

	last byte
}

func New(camera Camera, robot io.Writer, deadband int, log *zap.SugaredLogger) *Follower {
	if deadband <= 0 {
		deadband = DefaultDeadband
	}
	return &Follower{camera: camera, robot: robot, deadband: deadband, log: log}
}

// Step processes a single frame and sends the resulting byte.
func (f *Follower) Step() (byte, error) {
	d, err := f.camera.Next()
	if err != nil {
		return 0, errors.Wrap(err, "reading camera")
	}
	cmd := Decide(d, f.deadband)
	if cmd != f.last {
		if d.Found {
			f.log.Infow("QR detected", "data", d.Data, "center", d.Center(), "command", string(cmd))
		} else {
			f.log.Infow("No QR detected, stopping")
		}
		f.last = cmd
	}
	if _, err := f.robot.Write([]byte{cmd}); err != nil {
		return cmd, errors.Wrap(err, "sending to robot")
	}
	return cmd, nil
}

// Run steps until ctx is done or something fails, then sends a final stop.
func (f *Follower) Run(ctx context.Context) error {
	defer func() {
		if _, err := f.robot.Write([]byte{Stop}); err != nil {
			f.log.Warnw("Failed to send final stop", "error", err)
		}
	}()
	for ctx.Err() == nil {
		if _, err := f.Step(); err != nil {
			return err
		}
	}
	return ctx.Err()
}
