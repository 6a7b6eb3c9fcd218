package experiment

import (
	"log/slog"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
	"lautenbacher.net/goboard/display"
)

// Mirror shows an analog sensor on a bar graph and as LED brightness.
// Both follow change events only.
type Mirror struct {
	conf   c.MirrorConfig
	deps   Deps
	sensor *device.Sensor
	led    *device.Led
	graph  *display.BarGraph
}

func NewMirror(conf c.MirrorConfig, deps Deps) *Mirror {
	return &Mirror{conf: conf, deps: deps.withDefaults()}
}

func (s *Mirror) Name() string { return "mirror" }

func (s *Mirror) Ready(board *device.Board) error {
	low, high := s.conf.Range[0], s.conf.Range[1]
	graph, err := display.NewBarGraph(s.conf.Label, low, high, s.conf.Width, s.deps.GraphSink)
	if err != nil {
		return err
	}
	s.graph = graph
	s.led = device.NewLed(board, s.conf.LedPin)
	s.sensor = device.NewSensor(board, device.SensorConfig{
		Pin:       s.conf.SensorPin,
		Threshold: s.conf.Threshold,
		Smoothing: s.conf.Smoothing,
	})
	s.sensor.OnChange(func(value int) {
		scaled := s.sensor.ScaleTo(low, high)
		brightness := s.sensor.ScaleTo(0, 255)
		s.graph.Update(scaled)
		if err := s.led.Brightness(byte(brightness)); err != nil {
			slog.Error("Setting brightness failed", "pin", s.conf.LedPin, "error", err)
		}
		s.deps.Recorder.Record("sensor", map[string]string{"pin": s.conf.SensorPin},
			map[string]any{"raw": value, "scaled": scaled, "brightness": brightness}, s.deps.Now())
	})
	slog.Info("Mirroring sensor", "sensor", s.conf.SensorPin, "led", s.conf.LedPin, "threshold", s.conf.Threshold)
	return nil
}

func (s *Mirror) Stop() {}

func (s *Mirror) Graph() *display.BarGraph { return s.graph }
func (s *Mirror) Sensor() *device.Sensor   { return s.sensor }
