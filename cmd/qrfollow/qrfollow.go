package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/qrfollow"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/transport"
)

type Options struct {
	Port     string `short:"p" long:"port" default:"/dev/ttyACM0" description:"Serial port the robot is on"`
	Baud     int    `short:"b" long:"baud" default:"9600" description:"Baud rate"`
	Camera   int    `long:"camera" default:"0" description:"Video capture device number"`
	FPS      int    `long:"fps" default:"15" description:"Frames per second to capture"`
	Deadband int    `long:"deadband" default:"50" description:"Pixels either side of centre that count as straight ahead"`
	Follow   bool   `long:"follow" description:"Send FOLLOW first to put the robot into follow mode"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log := l.Sugar()
	defer func() { _ = log.Sync() }()

	if err := run(opts, log); err != nil && err != context.Canceled {
		log.Errorw("QR follower failed", "error", err)
		os.Exit(1)
	}
}

func run(opts Options, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, err := transport.OpenSerial(opts.Port, opts.Baud)
	if err != nil {
		return err
	}
	defer port.Close()
	if opts.Follow {
		if _, err := port.Write([]byte("follow\n")); err != nil {
			return errors.Wrap(err, "entering follow mode")
		}
	}

	cam, err := openCamera(opts.Camera, opts.FPS)
	if err != nil {
		return err
	}
	defer cam.Close()

	log.Infow("Following QR codes", "camera", opts.Camera, "port", opts.Port)
	return qrfollow.New(cam, port, opts.Deadband, log).Run(ctx)
}

// camera reads frames from a capture device and looks for a QR code in each.
type camera struct {
	webcam   *gocv.VideoCapture
	img      gocv.Mat
	points   gocv.Mat
	straight gocv.Mat
	detector gocv.QRCodeDetector
}

func openCamera(id, fps int) (*camera, error) {
	webcam, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, errors.Wrapf(err, "opening video capture device %d", id)
	}
	webcam.Set(gocv.VideoCaptureFPS, float64(fps))
	return &camera{
		webcam:   webcam,
		img:      gocv.NewMat(),
		points:   gocv.NewMat(),
		straight: gocv.NewMat(),
		detector: gocv.NewQRCodeDetector(),
	}, nil
}

func (c *camera) Next() (qrfollow.Detection, error) {
	// This blocks until the next frame is ready.
	if ok := c.webcam.Read(&c.img); !ok {
		return qrfollow.Detection{}, errors.New("cannot read device")
	}
	if c.img.Empty() {
		return qrfollow.Detection{}, errors.New("no image on device")
	}
	d := qrfollow.Detection{FrameWidth: c.img.Cols()}
	d.Data = c.detector.DetectAndDecode(c.img, &c.points, &c.straight)
	if c.points.Empty() || d.Data == "" {
		return d, nil
	}
	// One row of float32 (x, y) pairs, one per corner.
	for i := 0; i < c.points.Cols(); i++ {
		v := c.points.GetVecfAt(0, i)
		if len(v) < 2 {
			continue
		}
		d.Corners = append(d.Corners, image.Pt(int(v[0]), int(v[1])))
	}
	d.Found = len(d.Corners) > 0
	return d, nil
}

func (c *camera) Close() {
	_ = c.detector.Close()
	_ = c.straight.Close()
	_ = c.points.Close()
	_ = c.img.Close()
	_ = c.webcam.Close()
}
