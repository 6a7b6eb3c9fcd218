package experiment

import (
	"log/slog"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
)

// Blink blinks a single LED.
type Blink struct {
	conf c.BlinkConfig
	led  *device.Led
}

func NewBlink(conf c.BlinkConfig) *Blink {
	return &Blink{conf: conf}
}

func (s *Blink) Name() string { return "blink" }

func (s *Blink) Ready(board *device.Board) error {
	s.led = device.NewLed(board, s.conf.Pin)
	slog.Info("Blinking", "pin", s.conf.Pin, "interval", s.conf.Interval)
	return s.led.Blink(s.conf.Interval)
}

func (s *Blink) Stop() {
	if s.led != nil {
		s.led.Stop()
	}
}

// Led returns the LED once Ready ran.
func (s *Blink) Led() *device.Led { return s.led }

// Rainbow blinks a group of LEDs in unison.
type Rainbow struct {
	conf c.RainbowConfig
	leds *device.Leds
}

func NewRainbow(conf c.RainbowConfig) *Rainbow {
	return &Rainbow{conf: conf}
}

func (s *Rainbow) Name() string { return "rainbow" }

func (s *Rainbow) Ready(board *device.Board) error {
	s.leds = device.NewLeds(board, s.conf.Pins...)
	slog.Info("Blinking group", "pins", s.conf.Pins, "interval", s.conf.Interval)
	return s.leds.Blink(s.conf.Interval)
}

func (s *Rainbow) Stop() {
	if s.leds != nil {
		s.leds.Stop()
	}
}

func (s *Rainbow) Leds() *device.Leds { return s.leds }
