package device

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Leds is a group of LEDs driven as one. A group blinks from a single
// timer, so all members switch in the same tick.
type Leds struct {
	leds    []*Led
	mu      sync.Mutex
	isOn    bool
	blinker blinker
}

func NewLeds(board *Board, pins ...string) *Leds {
	inst := &Leds{leds: make([]*Led, 0, len(pins))}
	for _, pin := range pins {
		inst.leds = append(inst.leds, &Led{board: board, pin: pin, value: 255})
	}
	board.addOutput(inst)
	return inst
}

// Pins returns the pin names of the group in order.
func (s *Leds) Pins() []string {
	ret := make([]string, len(s.leds))
	for i, led := range s.leds {
		ret[i] = led.pin
	}
	return ret
}

// Len returns the number of LEDs in the group.
func (s *Leds) Len() int {
	return len(s.leds)
}

// At returns the LED at index i.
func (s *Leds) At(i int) *Led {
	return s.leds[i]
}

func (s *Leds) On() error {
	s.blinker.halt()
	return s.set(true)
}

func (s *Leds) Off() error {
	s.blinker.halt()
	return s.set(false)
}

// Blink toggles all LEDs together every interval.
func (s *Leds) Blink(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("led group: blink interval must be positive, got %v", interval)
	}
	s.blinker.start(interval, s.toggle)
	return nil
}

func (s *Leds) Stop() {
	s.blinker.halt()
}

func (s *Leds) Interval() time.Duration {
	return s.blinker.currentInterval()
}

func (s *Leds) IsBlinking() bool {
	return s.blinker.running()
}

func (s *Leds) toggle() error {
	s.mu.Lock()
	on := !s.isOn
	s.mu.Unlock()
	return s.set(on)
}

// set switches every member. A failing pin does not keep the others
// from switching.
func (s *Leds) set(on bool) error {
	s.mu.Lock()
	s.isOn = on
	s.mu.Unlock()

	var errs []error
	for _, led := range s.leds {
		if err := led.set(on); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
