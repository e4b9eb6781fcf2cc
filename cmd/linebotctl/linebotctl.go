package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/transport"
)

type Options struct {
	Port    string        `short:"p" long:"port" default:"/dev/ttyACM0" description:"Serial port the robot is on"`
	Baud    int           `short:"b" long:"baud" default:"9600" description:"Baud rate"`
	Window  time.Duration `short:"w" long:"window" default:"500ms" description:"How long to wait for the robot to go quiet after a command"`
	Config  string        `short:"c" long:"config" default:"/cfg/linebot.yaml" description:"Robot config, for the target table"`
	Verbose bool          `short:"v" long:"verbose" description:"Debug logging"`

	Send   SendCommand   `command:"send" description:"Dispatch a target run, cancelling any run already in progress"`
	Pick   PickCommand   `command:"pick" description:"Choose a target from a menu and dispatch it"`
	Line   LineCommand   `command:"line" description:"Send one raw line"`
	Byte   ByteCommand   `command:"byte" description:"Send single drive bytes (F/B/L/R/S)"`
	Follow FollowCommand `command:"follow" description:"Put the robot into follow mode"`
	Status StatusCommand `command:"status" description:"Ask the robot for its status"`
	Listen ListenCommand `command:"listen" description:"Dispatch targets read from stdin, one per line"`
	Drive  DriveCommand  `command:"drive" description:"Drive the robot from the keyboard"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Host tool for sending targets and drive commands to the line bot"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

// connect opens the port and returns a client, a context that ends on SIGINT/SIGTERM, and
// a cleanup function.
func connect() (*transport.Client, context.Context, func(), error) {
	log := newLogger()
	port, err := transport.OpenSerial(opts.Port, opts.Baud)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cleanup := func() {
		stop()
		_ = port.Close()
		_ = log.Sync()
	}
	return transport.NewClient(port, opts.Window, clock.New(), log), ctx, cleanup, nil
}

func printReplies(replies []string) {
	for _, r := range replies {
		fmt.Println("<", r)
	}
}

type SendCommand struct {
	Args struct {
		Target string `positional-arg-name:"target" required:"yes" description:"Target name or number, e.g. milk or 1"`
	} `positional-args:"yes"`
}

func (c *SendCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	replies, err := client.Dispatch(ctx, strings.ToLower(c.Args.Target))
	printReplies(replies)
	return err
}

type LineCommand struct {
	Args struct {
		Words []string `positional-arg-name:"text" required:"yes"`
	} `positional-args:"yes"`
}

func (c *LineCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	replies, err := client.SendLine(ctx, strings.Join(c.Args.Words, " "))
	printReplies(replies)
	return err
}

type ByteCommand struct {
	Args struct {
		Bytes string `positional-arg-name:"bytes" required:"yes" description:"Drive bytes to send in order, e.g. FFLS"`
	} `positional-args:"yes"`
}

func (c *ByteCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	for _, b := range []byte(c.Args.Bytes) {
		replies, err := client.SendByte(ctx, b)
		printReplies(replies)
		if err != nil {
			return err
		}
	}
	return nil
}

type FollowCommand struct {
	Stop bool `long:"stop" description:"Leave follow mode instead"`
}

func (c *FollowCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	line := "follow"
	if c.Stop {
		line = "stop follow"
	}
	replies, err := client.SendLine(ctx, line)
	printReplies(replies)
	return err
}

type StatusCommand struct{}

func (c *StatusCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	replies, err := client.SendLine(ctx, "status")
	printReplies(replies)
	return err
}

type ListenCommand struct{}

func (c *ListenCommand) Execute(args []string) error {
	client, ctx, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("Type a target per line (milk, bread, pen, ...); Ctrl-D to finish.")
	s := bufio.NewScanner(os.Stdin)
	for s.Scan() {
		line := strings.ToLower(strings.TrimSpace(s.Text()))
		if line == "" {
			continue
		}
		replies, err := client.Dispatch(ctx, line)
		printReplies(replies)
		if err != nil {
			return err
		}
	}
	return s.Err()
}
