package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/config"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linemode"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/modecontrol"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/screen"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/sound"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/transport"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/tunable"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Config file; missing means defaults"`
	Port    string `short:"p" long:"port" description:"Serial port, overrides the config"`
	Sim     bool   `long:"sim" description:"Talk over a pseudo-terminal instead of the serial port"`
	Stdio   bool   `long:"stdio" description:"Talk over stdin/stdout instead of the serial port"`
	Dummy   bool   `long:"dummy" description:"Use dummy motors and static line sensors"`
	Verbose bool   `short:"v" long:"verbose" description:"Log every command and motor change"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log := newLogger(opts.Verbose)
	defer func() { _ = log.Sync() }()

	if err := run(opts, log); err != nil {
		log.Errorw("Line bot failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

func run(opts Options, log *zap.SugaredLogger) error {
	fmt.Print("---- Line bot ----\n\n")
	log.Infow("Starting", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.Port != "" {
		cfg.Serial.Port = opts.Port
	}
	if err := cfg.WriteInUse(config.InUsePath(opts.Config)); err != nil {
		log.Warnw("Failed to write in-use config", "error", err)
	}
	log.Infof("Config in use:\n%v", cfg)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Infow("Signal", "signal", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	var hw *hardware.Hardware
	if opts.Dummy {
		hw = hardware.NewDummy(cfg, log)
	} else if hw, err = hardware.New(cfg, log); err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Warnw("Failed to release hardware", "error", err)
		}
	}()

	link, err := openLink(opts, cfg, log)
	if err != nil {
		return err
	}
	defer link.Close()

	clk := clock.New()
	parser := command.NewParser(cfg.CommandTargets())
	sensors := linesensor.NewReader(hw.ADC, cfg.Sensors)
	ctrl := modecontrol.New(cfg.ControllerConfig(), drive.New(hw.Actuator, log), sensors, clk, log)

	tunables := &tunable.Tunables{Log: log}
	modeOpts := linemode.Options{
		TickInterval: cfg.TickInterval,
		Speeds:       linemode.NewSpeedTunables(tunables, cfg.ControllerConfig().Speeds),
	}
	if hw.Battery != nil {
		modeOpts.Battery = hw.Battery
	}
	if cfg.Sounds.Enabled {
		player := sound.New(log)
		defer player.Close()
		modeOpts.Player = player
		modeOpts.Cues = map[modecontrol.MessageKind]string{
			modecontrol.MsgRunStarted:  cfg.Sounds.RunStarted,
			modecontrol.MsgRunFinished: cfg.Sounds.RunFinished,
			modecontrol.MsgSafetyStop:  cfg.Sounds.SafetyStop,
		}
	}
	if cfg.Screen.Enabled {
		scr, err := screen.Open(cfg.Screen.Framebuffer, cfg.Screen.Interval, clk, log)
		if err != nil {
			log.Warnw("Failed to open screen, continuing without it", "error", err)
		} else {
			go scr.Loop(ctx)
			modeOpts.Display = scr
		}
	}

	joystickEvents := make(chan *joystick.Event)
	if cfg.Joystick.Enabled {
		modeOpts.Joystick = joystick.NewMapper(parser.Targets(), tunables, cfg.Joystick.TuneStep)
		startJoystick(ctx, cfg.Joystick.Device, joystickEvents, log)
	}

	mode := linemode.New(ctrl, transport.NewAssembler(parser), transport.NewSink(link), clk, log, modeOpts)

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- transport.Pump(ctx, link, mode.Input())
	}()

	log.Infof("----- %s -----", mode.Name())
	mode.Start(ctx)
	defer mode.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Context done, stopping line mode and shutting down")
			return nil
		case err := <-pumpDone:
			if err != nil {
				return err
			}
			log.Info("Link closed, shutting down")
			return nil
		case event := <-joystickEvents:
			mode.OnJoystickEvent(event)
		}
	}
}

func openLink(opts Options, cfg config.Config, log *zap.SugaredLogger) (io.ReadWriteCloser, error) {
	switch {
	case opts.Sim:
		p, err := transport.OpenPTY()
		if err != nil {
			return nil, err
		}
		log.Infow("Simulated serial port ready", "path", p.SlavePath())
		return p, nil
	case opts.Stdio:
		return transport.Stdio{}, nil
	default:
		p, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, err
		}
		log.Infow("Opened serial port", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
		return p, nil
	}
}

// startJoystick keeps trying to open the pad in the background so that the robot works
// without one.
func startJoystick(ctx context.Context, device string, events chan<- *joystick.Event, log *zap.SugaredLogger) {
	go func() {
		for ctx.Err() == nil {
			j, err := joystick.NewJoystick(device)
			if err != nil {
				log.Debugw("Failed to open joystick", "device", device, "error", err)
				time.Sleep(time.Second)
				continue
			}
			log.Infow("Opened joystick", "device", device)
			if err := joystick.Loop(ctx, j, events); err != nil && ctx.Err() == nil {
				log.Warnw("Joystick failed", "error", err)
			}
		}
	}()
}
