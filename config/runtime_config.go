package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API. It excludes the
// board wiring, credentials and other sensitive settings.
type RuntimeConfig struct {
	Experiment string         `yaml:"Experiment" json:"Experiment"`
	Blink      BlinkConfig    `yaml:"Blink" json:"Blink"`
	Rainbow    RainbowConfig  `yaml:"Rainbow" json:"Rainbow"`
	Intruder   IntruderConfig `yaml:"Intruder" json:"Intruder"`
	Mirror     MirrorConfig   `yaml:"Mirror" json:"Mirror"`
}

// Runtime extracts the runtime editable part of c.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		Experiment: c.Experiment,
		Blink:      c.Blink,
		Rainbow:    c.Rainbow,
		Intruder:   c.Intruder,
		Mirror:     c.Mirror,
	}
}

// Merge replaces the runtime editable part of c with rc.
func (c *Config) Merge(rc RuntimeConfig) {
	c.Experiment = rc.Experiment
	c.Blink = rc.Blink
	c.Rainbow = rc.Rainbow
	c.Intruder = rc.Intruder
	c.Mirror = rc.Mirror
}
