package device

import (
	"log/slog"
	"math"
	"sync"

	"github.com/gammazero/deque"

	c "lautenbacher.net/goboard/config"
	u "lautenbacher.net/goboard/util"
)

type SensorConfig struct {
	Pin string
	// Threshold is the minimum distance from the last reported value
	// before a new change event fires. Zero reports every change.
	Threshold int
	// Smoothing is the number of raw samples averaged into one value.
	Smoothing int
}

// Sensor is an analog input in the range 0..ANALOG_MAX. The first
// sample always fires a change; later samples fire only when they move
// more than Threshold away from the last reported value.
type Sensor struct {
	cfg      SensorConfig
	mu       sync.Mutex
	samples  *deque.Deque[int]
	sum      int
	value    int
	reported bool
	failing  bool
	onChange []func(int)
}

func NewSensor(board *Board, cfg SensorConfig) *Sensor {
	if cfg.Smoothing < 1 {
		cfg.Smoothing = 1
	}
	inst := &Sensor{cfg: cfg, samples: new(deque.Deque[int])}
	board.addInput(&sensorPoller{sensor: inst, board: board})
	return inst
}

func (s *Sensor) Pin() string {
	return s.cfg.Pin
}

// OnChange registers a handler that receives the new value.
func (s *Sensor) OnChange(handler func(value int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, handler)
}

// Value returns the last reported value.
func (s *Sensor) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// ScaleTo maps the last reported value into [low, high].
func (s *Sensor) ScaleTo(low, high int) int {
	return u.Scale(s.Value(), 0, c.ANALOG_MAX, low, high)
}

// update adds a raw sample and returns the handlers to run together
// with the value they receive.
func (s *Sensor) update(raw int) ([]func(int), int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples.PushBack(raw)
	s.sum += raw
	if s.samples.Len() > s.cfg.Smoothing {
		s.sum -= s.samples.PopFront()
	}
	value := int(math.Round(float64(s.sum) / float64(s.samples.Len())))

	if s.reported {
		diff := value - s.value
		if diff < 0 {
			diff = -diff
		}
		if diff <= s.cfg.Threshold {
			return nil, s.value
		}
	}
	s.reported = true
	s.value = value
	return append([]func(int){}, s.onChange...), value
}

type sensorPoller struct {
	sensor *Sensor
	board  *Board
}

func (p *sensorPoller) poll() {
	raw, err := p.board.platform.AnalogRead(p.sensor.cfg.Pin)
	p.sensor.mu.Lock()
	first := err != nil && !p.sensor.failing
	p.sensor.failing = err != nil
	p.sensor.mu.Unlock()
	if err != nil {
		if first {
			slog.Error("Reading sensor failed", "pin", p.sensor.cfg.Pin, "error", err)
		}
		return
	}

	handlers, value := p.sensor.update(raw)
	for _, handler := range handlers {
		handler(value)
	}
}
