package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	c "lautenbacher.net/goboard/config"
)

var errStopped = errors.New("platform stopped")

// MemoryPlatform is a board without hardware. Outputs are recorded,
// inputs are set programmatically. It backs the tests and the
// headless dry run.
type MemoryPlatform struct {
	*AbstractPlatform
	mu      sync.Mutex
	inputs  map[string]bool
	analog  map[string]int
	history []PinState
}

func NewMemoryPlatform(conf *c.Config) *MemoryPlatform {
	return &MemoryPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		inputs:           make(map[string]bool),
		analog:           make(map[string]int),
	}
}

func (s *MemoryPlatform) Start() error {
	slog.Info("Starting in-memory board", "digital", len(s.config.Board.Pins), "analog", len(s.config.Board.AnalogPins))
	s.markReady()
	return nil
}

func (s *MemoryPlatform) Stop() {
	s.setInShutdown()
}

func (s *MemoryPlatform) DigitalWrite(pin string, high bool) error {
	if _, err := s.gpio(pin); err != nil {
		return err
	}
	if s.inShutdown() {
		return errStopped
	}
	s.write(PinState{Pin: pin, Mode: ModeOutput, High: high})
	return nil
}

func (s *MemoryPlatform) PwmWrite(pin string, value byte) error {
	if _, err := s.gpio(pin); err != nil {
		return err
	}
	if s.inShutdown() {
		return errStopped
	}
	s.write(PinState{Pin: pin, Mode: ModePwm, High: value > 0, Duty: value})
	return nil
}

func (s *MemoryPlatform) DigitalRead(pin string) (bool, error) {
	if _, err := s.gpio(pin); err != nil {
		return false, err
	}
	s.mu.Lock()
	high := s.inputs[pin]
	s.mu.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeInput, High: high})
	return high, nil
}

func (s *MemoryPlatform) AnalogRead(pin string) (int, error) {
	if _, err := s.adcChannel(pin); err != nil {
		return 0, err
	}
	s.mu.Lock()
	value := s.analog[pin]
	s.mu.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeAnalog, Value: value})
	return value, nil
}

// SetInput sets the level the next DigitalRead of pin returns.
func (s *MemoryPlatform) SetInput(pin string, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[pin] = high
}

// SetAnalog sets the value the next AnalogRead of pin returns.
func (s *MemoryPlatform) SetAnalog(pin string, value int) {
	if value < 0 || value > c.ANALOG_MAX {
		panic(fmt.Sprintf("analog value %d out of range", value))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analog[pin] = value
}

// History returns all writes in the order they happened.
func (s *MemoryPlatform) History() []PinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]PinState, len(s.history))
	copy(ret, s.history)
	return ret
}

// HistoryFor returns the writes to a single pin.
func (s *MemoryPlatform) HistoryFor(pin string) []PinState {
	var ret []PinState
	for _, st := range s.History() {
		if st.Pin == pin {
			ret = append(ret, st)
		}
	}
	return ret
}

func (s *MemoryPlatform) write(state PinState) {
	s.mu.Lock()
	s.history = append(s.history, state)
	s.mu.Unlock()
	s.record(state)
}
