// Package config holds the robot's tuning and wiring.  Defaults match the robot as built;
// anything in the YAML file overrides them and the result is written back out so that the
// config actually in use can be inspected on the robot.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/ads1115"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/drive"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/l298n"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/linesensor"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/mcp3008"
	"github.com/tigerbot-team/tigerbot/linebot/pkg/modecontrol"
)

const (
	DefaultPath = "/cfg/linebot.yaml"

	ADCMCP3008 = "mcp3008"
	ADCADS1115 = "ads1115"
	ADCStatic  = "static"
)

var (
	ErrNoTargets       = errors.New("at least one target is required")
	ErrTooManyTargets  = errors.New("at most nine targets are supported")
	ErrBadSpeed        = errors.New("speeds must be between 0 and 255")
	ErrBadDuration     = errors.New("durations must be positive")
	ErrUnknownADC      = errors.New("unknown ADC backend")
	ErrBadTickInterval = errors.New("tick interval must be positive")
)

type SpeedConfig struct {
	Base   int `yaml:"base"`
	Turn   int `yaml:"turn"`
	Search int `yaml:"search"`
}

type TargetConfig struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration"`
	Aliases  []string      `yaml:"aliases,omitempty"`
}

type ADCConfig struct {
	Backend string         `yaml:"backend"`
	MCP3008 mcp3008.Config `yaml:"mcp3008"`
	ADS1115 ads1115.Config `yaml:"ads1115"`
	// Static readings by channel, for bench testing without sensors.
	Static map[int]int `yaml:"static,omitempty"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type PowerConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Device     string  `yaml:"device"`
	Addr       int     `yaml:"addr"`
	ShuntOhms  float64 `yaml:"shunt_ohms"`
	MaxCurrent float64 `yaml:"max_current"`
	EmptyVolts float64 `yaml:"empty_volts"`
	FullVolts  float64 `yaml:"full_volts"`
}

type ScreenConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Framebuffer string        `yaml:"framebuffer"`
	Interval    time.Duration `yaml:"interval"`
}

type SoundConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RunStarted  string `yaml:"run_started"`
	RunFinished string `yaml:"run_finished"`
	SafetyStop  string `yaml:"safety_stop"`
}

type JoystickConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
	// TuneStep is how much L2/R2 move the selected speed.
	TuneStep int `yaml:"tune_step"`
}

type Config struct {
	Speeds        SpeedConfig       `yaml:"speeds"`
	Sensors       linesensor.Config `yaml:"sensors"`
	ADC           ADCConfig         `yaml:"adc"`
	Motors        l298n.Config      `yaml:"motors"`
	Targets       []TargetConfig    `yaml:"targets"`
	SafetyTimeout time.Duration     `yaml:"safety_timeout"`
	TickInterval  time.Duration     `yaml:"tick_interval"`

	Serial   SerialConfig   `yaml:"serial"`
	Power    PowerConfig    `yaml:"power"`
	Screen   ScreenConfig   `yaml:"screen"`
	Sounds   SoundConfig    `yaml:"sounds"`
	Joystick JoystickConfig `yaml:"joystick"`
}

func Default() Config {
	return Config{
		Speeds: SpeedConfig{
			Base:   110,
			Turn:   90,
			Search: 160,
		},
		Sensors: linesensor.Config{
			LeftChannel:  0,
			RightChannel: 1,
			Threshold:    500,
			Inverted:     false,
		},
		ADC: ADCConfig{
			Backend: ADCMCP3008,
			MCP3008: mcp3008.Config{Device: mcp3008.DefaultDevice, SpeedKHz: 1000},
			ADS1115: ads1115.Config{Device: ads1115.DefaultDevice, Addr: ads1115.DefaultAddr},
		},
		Motors: l298n.Config{
			Left:          l298n.ChannelConfig{In1: "GPIO5", In2: "GPIO6", Enable: "GPIO12", PWMOutput: 0},
			Right:         l298n.ChannelConfig{In1: "GPIO20", In2: "GPIO21", Enable: "GPIO13", PWMOutput: 1},
			EnableBackend: l298n.EnableGPIO,
			PWMHz:         l298n.DefaultPWMHz,
			I2CDevice:     "/dev/i2c-1",
		},
		Targets: []TargetConfig{
			{Name: "MILK", Duration: 20 * time.Second},
			{Name: "BREAD", Duration: 25 * time.Second},
			{Name: "PEN", Duration: 15 * time.Second},
		},
		SafetyTimeout: 100 * time.Second,
		TickInterval:  20 * time.Millisecond,
		Serial: SerialConfig{
			Port: "/dev/ttyACM0",
			Baud: 9600,
		},
		Power: PowerConfig{
			Device:     "/dev/i2c-1",
			Addr:       0x41,
			ShuntOhms:  0.1,
			MaxCurrent: 3.2,
			EmptyVolts: 6.0,
			FullVolts:  8.4,
		},
		Screen: ScreenConfig{
			Framebuffer: "/dev/fb1",
			Interval:    500 * time.Millisecond,
		},
		Sounds: SoundConfig{
			RunStarted:  "/sounds/start.wav",
			RunFinished: "/sounds/finished.wav",
			SafetyStop:  "/sounds/halt.wav",
		},
		Joystick: JoystickConfig{
			Device:   "/dev/input/js0",
			TuneStep: 5,
		},
	}
}

// Load overlays the file at path onto the defaults.  A missing file is not an error; the
// defaults are returned as-is.
func Load(path string) (Config, error) {
	c := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	} else if err != nil {
		return c, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrapf(err, "invalid config %s", path)
	}
	return c, nil
}

func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}
	if len(c.Targets) > 9 {
		return ErrTooManyTargets
	}
	for _, t := range c.Targets {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New("target with no name")
		}
		if t.Duration <= 0 {
			return errors.Wrapf(ErrBadDuration, "target %s", t.Name)
		}
	}
	for _, s := range []int{c.Speeds.Base, c.Speeds.Turn, c.Speeds.Search} {
		if s < 0 || s > drive.MaxSpeed {
			return errors.Wrapf(ErrBadSpeed, "got %d", s)
		}
	}
	if c.SafetyTimeout < 0 {
		return errors.Wrap(ErrBadDuration, "safety_timeout")
	}
	if c.TickInterval <= 0 {
		return ErrBadTickInterval
	}
	switch c.ADC.Backend {
	case ADCMCP3008, ADCADS1115, ADCStatic:
	default:
		return errors.Wrapf(ErrUnknownADC, "%q", c.ADC.Backend)
	}
	return nil
}

// InUsePath maps /cfg/linebot.yaml to /cfg/linebot-in-use.yaml.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse writes out the config that we are using.
func (c Config) WriteInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	if err := ioutil.WriteFile(path, data, 0666); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func (c Config) CommandTargets() []command.Target {
	targets := make([]command.Target, len(c.Targets))
	for i, t := range c.Targets {
		targets[i] = command.Target{
			Number:   i + 1,
			Name:     strings.ToUpper(strings.TrimSpace(t.Name)),
			Duration: t.Duration,
			Aliases:  t.Aliases,
		}
	}
	return targets
}

func (c Config) ControllerConfig() modecontrol.Config {
	return modecontrol.Config{
		Speeds: modecontrol.Speeds{
			Base:   c.Speeds.Base,
			Turn:   c.Speeds.Turn,
			Search: c.Speeds.Search,
		},
		SafetyTimeout: c.SafetyTimeout,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("speeds=%+v threshold=%d inverted=%v targets=%d safety=%v tick=%v",
		c.Speeds, c.Sensors.Threshold, c.Sensors.Inverted, len(c.Targets), c.SafetyTimeout, c.TickInterval)
}
