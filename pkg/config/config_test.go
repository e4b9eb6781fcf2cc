package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/linebot/pkg/command"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linebot.yaml")
	test.That(t, ioutil.WriteFile(path, []byte(contents), 0644), test.ShouldBeNil)
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()
	test.That(t, c.Validate(), test.ShouldBeNil)
	test.That(t, c.Speeds, test.ShouldResemble, SpeedConfig{Base: 110, Turn: 90, Search: 160})
	test.That(t, c.Sensors.Threshold, test.ShouldEqual, 500)
	test.That(t, c.Sensors.Inverted, test.ShouldBeFalse)
	test.That(t, c.SafetyTimeout, test.ShouldEqual, 100*time.Second)
	test.That(t, c.TickInterval, test.ShouldEqual, 20*time.Millisecond)

	p, err := command.NewParser(c.CommandTargets())
	test.That(t, err, test.ShouldBeNil)
	cmd, ok := p.ParseLine("bread")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cmd.Target.Number, test.ShouldEqual, 2)
	test.That(t, cmd.Target.Duration, test.ShouldEqual, 25*time.Second)
}

func TestMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, Default())
}

func TestOverlay(t *testing.T) {
	path := writeFile(t, `
speeds:
  base: 120
sensors:
  inverted: true
targets:
- name: tea
  duration: 12s
  aliases: ["CUPPA"]
safety_timeout: 0s
adc:
  backend: ads1115
`)
	c, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Speeds, test.ShouldResemble, SpeedConfig{Base: 120, Turn: 90, Search: 160})
	test.That(t, c.Sensors.Inverted, test.ShouldBeTrue)
	test.That(t, c.Sensors.Threshold, test.ShouldEqual, 500)
	test.That(t, c.SafetyTimeout, test.ShouldEqual, time.Duration(0))
	test.That(t, c.ADC.Backend, test.ShouldEqual, ADCADS1115)

	targets := c.CommandTargets()
	test.That(t, targets, test.ShouldResemble, []command.Target{
		{Number: 1, Name: "TEA", Duration: 12 * time.Second, Aliases: []string{"CUPPA"}},
	})

	cc := c.ControllerConfig()
	test.That(t, cc.Speeds.Base, test.ShouldEqual, 120)
	test.That(t, cc.SafetyTimeout, test.ShouldEqual, time.Duration(0))
}

func TestValidation(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"no targets", func(c *Config) { c.Targets = nil }, ErrNoTargets},
		{"ten targets", func(c *Config) {
			for len(c.Targets) < 10 {
				c.Targets = append(c.Targets, TargetConfig{Name: "X", Duration: time.Second})
			}
		}, ErrTooManyTargets},
		{"zero duration", func(c *Config) { c.Targets[0].Duration = 0 }, ErrBadDuration},
		{"fast", func(c *Config) { c.Speeds.Search = 300 }, ErrBadSpeed},
		{"negative", func(c *Config) { c.Speeds.Turn = -1 }, ErrBadSpeed},
		{"tick", func(c *Config) { c.TickInterval = 0 }, ErrBadTickInterval},
		{"adc", func(c *Config) { c.ADC.Backend = "abacus" }, ErrUnknownADC},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			err := c.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Cause(err), test.ShouldEqual, tc.want)
		})
	}
}

func TestBadFile(t *testing.T) {
	_, err := Load(writeFile(t, "speeds: [1, 2"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Load(writeFile(t, "speeds:\n  base: 999\n"))
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrBadSpeed)
}

func TestWriteInUse(t *testing.T) {
	test.That(t, InUsePath("/cfg/linebot.yaml"), test.ShouldEqual, "/cfg/linebot-in-use.yaml")

	c := Default()
	c.Speeds.Turn = 95
	path := filepath.Join(t.TempDir(), "in-use.yaml")
	test.That(t, c.WriteInUse(path), test.ShouldBeNil)

	data, err := ioutil.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	var back Config
	test.That(t, yaml.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, back.Speeds.Turn, test.ShouldEqual, 95)
	test.That(t, back.Targets[1].Duration, test.ShouldEqual, 25*time.Second)
	test.That(t, string(data), test.ShouldContainSubstring, "safety_timeout: 1m40s")
}
