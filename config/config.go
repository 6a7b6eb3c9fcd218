package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

// Analog inputs are read through a 10 bit ADC.
const ANALOG_MAX = 1023

type Config struct {
	RealHW     bool            `yaml:"-"`
	SensorShow bool            `yaml:"-"`
	Configfile string          `yaml:"-"`
	Experiment string          `yaml:"Experiment"`
	Board      BoardConfig     `yaml:"Board"`
	Blink      BlinkConfig     `yaml:"Blink"`
	Rainbow    RainbowConfig   `yaml:"Rainbow"`
	Intruder   IntruderConfig  `yaml:"Intruder"`
	Mirror     MirrorConfig    `yaml:"Mirror"`
	Telemetry  TelemetryConfig `yaml:"Telemetry"`
	Web        WebConfig       `yaml:"Web"`
	Logging    LoggingConfig   `yaml:"Logging"`
	Secrets    Secrets         `yaml:"-"`
}

type BoardConfig struct {
	LoopDelay    time.Duration `yaml:"LoopDelay"`
	SPIFrequency int           `yaml:"SPIFrequency"`
	PWMFrequency int           `yaml:"PWMFrequency"`
	// Board pin name (e.g. "a2") to BCM GPIO number
	Pins map[string]int `yaml:"Pins"`
	// Board pin name to MCP3008 channel
	AnalogPins map[string]byte `yaml:"AnalogPins"`
}

type BlinkConfig struct {
	Pin      string        `yaml:"Pin" json:"Pin"`
	Interval time.Duration `yaml:"Interval" json:"Interval"`
}

type RainbowConfig struct {
	Pins     []string      `yaml:"Pins" json:"Pins"`
	Interval time.Duration `yaml:"Interval" json:"Interval"`
}

type IntruderConfig struct {
	Pin         string        `yaml:"Pin" json:"Pin"`
	Invert      bool          `yaml:"Invert" json:"Invert"`
	From        string        `yaml:"From" json:"From"`
	To          string        `yaml:"To" json:"To"`
	Greeting    string        `yaml:"Greeting" json:"Greeting"`
	SendTimeout time.Duration `yaml:"SendTimeout" json:"SendTimeout"`
	NightOnly   bool          `yaml:"NightOnly" json:"NightOnly"`
	Latitude    float64       `yaml:"Latitude" json:"Latitude"`
	Longitude   float64       `yaml:"Longitude" json:"Longitude"`
}

type MirrorConfig struct {
	SensorPin string `yaml:"SensorPin" json:"SensorPin"`
	Threshold int    `yaml:"Threshold" json:"Threshold"`
	Smoothing int    `yaml:"Smoothing" json:"Smoothing"`
	LedPin    string `yaml:"LedPin" json:"LedPin"`
	Label     string `yaml:"Label" json:"Label"`
	Range     []int  `yaml:"Range" json:"Range"`
	Width     int    `yaml:"Width" json:"Width"`
}

type TelemetryConfig struct {
	Enabled bool   `yaml:"Enabled"`
	URL     string `yaml:"URL"`
	Org     string `yaml:"Org"`
	Bucket  string `yaml:"Bucket"`
}

type WebConfig struct {
	Enabled        bool     `yaml:"Enabled"`
	Address        string   `yaml:"Address"`
	AllowedOrigins []string `yaml:"AllowedOrigins"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

// ReadConfig reads, completes and validates the configuration in
// cfile. Secrets are taken from the environment, optionally primed
// from a .env file next to the config file.
func ReadConfig(cfile string, realp bool) (*Config, error) {
	conf, err := loadConfigFile(cfile)
	if err != nil {
		return nil, err
	}
	conf.RealHW = realp

	secrets, err := LoadSecrets(filepath.Join(filepath.Dir(cfile), ".env"))
	if err != nil {
		return nil, err
	}
	conf.Secrets = secrets
	return conf, nil
}

// loadConfigFile decodes, completes and validates cfile. It leaves the
// process environment alone.
func loadConfigFile(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't find config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := &Config{}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.Configfile = cfile
	conf.applyDefaults()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyDefaults() {
	if c.Board.LoopDelay == 0 {
		c.Board.LoopDelay = 20 * time.Millisecond
	}
	if c.Board.SPIFrequency == 0 {
		c.Board.SPIFrequency = 1000000
	}
	if c.Board.PWMFrequency == 0 {
		c.Board.PWMFrequency = 64000
	}
	if c.Intruder.SendTimeout == 0 {
		c.Intruder.SendTimeout = 10 * time.Second
	}
	if c.Mirror.Width == 0 {
		c.Mirror.Width = 40
	}
	if c.Mirror.Smoothing == 0 {
		c.Mirror.Smoothing = 1
	}
	if c.Web.Address == "" {
		c.Web.Address = ":8080"
	}
}

// Validate checks the configuration for consistency. Only the
// selected experiment needs its pins mapped, but value ranges are
// checked for all of them.
func (c *Config) Validate() error {
	if c.Board.LoopDelay <= 0 {
		return fmt.Errorf("Board.LoopDelay must be positive")
	}
	for name, ch := range c.Board.AnalogPins {
		if ch > 7 {
			return fmt.Errorf("Board.AnalogPins[%s]: ADC channel %d must be between 0 and 7", name, ch)
		}
	}
	if c.Blink.Interval <= 0 {
		return fmt.Errorf("Blink.Interval must be positive")
	}
	if c.Rainbow.Interval <= 0 {
		return fmt.Errorf("Rainbow.Interval must be positive")
	}
	if len(c.Rainbow.Pins) == 0 {
		return fmt.Errorf("Rainbow.Pins must not be empty")
	}
	for i, pin := range c.Rainbow.Pins {
		if slices.Contains(c.Rainbow.Pins[i+1:], pin) {
			return fmt.Errorf("Rainbow.Pins: pin %s is listed twice", pin)
		}
	}
	if c.Intruder.From == "" || c.Intruder.To == "" {
		return fmt.Errorf("Intruder.From and Intruder.To must be set")
	}
	if c.Intruder.Latitude < -90 || c.Intruder.Latitude > 90 {
		return fmt.Errorf("Intruder.Latitude must be between -90 and 90")
	}
	if c.Intruder.Longitude < -180 || c.Intruder.Longitude > 180 {
		return fmt.Errorf("Intruder.Longitude must be between -180 and 180")
	}
	if c.Mirror.Threshold < 0 {
		return fmt.Errorf("Mirror.Threshold must not be negative")
	}
	if c.Mirror.Smoothing < 1 {
		return fmt.Errorf("Mirror.Smoothing must be at least 1")
	}
	if len(c.Mirror.Range) != 2 || c.Mirror.Range[0] >= c.Mirror.Range[1] {
		return fmt.Errorf("Mirror.Range must be [low, high] with low < high")
	}
	if c.Telemetry.Enabled && (c.Telemetry.URL == "" || c.Telemetry.Bucket == "") {
		return fmt.Errorf("Telemetry.URL and Telemetry.Bucket must be set when telemetry is enabled")
	}

	if c.Experiment != "" {
		if err := c.ValidatePins(c.Experiment); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePins checks that every pin used by the named experiment is
// mapped on the board.
func (c *Config) ValidatePins(experiment string) error {
	var digital, analog []string
	switch experiment {
	case "blink":
		digital = []string{c.Blink.Pin}
	case "rainbow":
		digital = c.Rainbow.Pins
	case "intruder":
		digital = []string{c.Intruder.Pin}
	case "mirror":
		digital = []string{c.Mirror.LedPin}
		analog = []string{c.Mirror.SensorPin}
	default:
		return fmt.Errorf("unknown experiment %q", experiment)
	}
	for _, pin := range digital {
		if _, ok := c.Board.Pins[pin]; !ok {
			return fmt.Errorf("%s: pin %q is not mapped in Board.Pins", experiment, pin)
		}
	}
	for _, pin := range analog {
		if _, ok := c.Board.AnalogPins[pin]; !ok {
			return fmt.Errorf("%s: pin %q is not mapped in Board.AnalogPins", experiment, pin)
		}
	}
	return nil
}
