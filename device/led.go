package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// blinker runs a toggle function on a ticker in its own go routine
// until stopped. Shared by Led and Leds.
type blinker struct {
	mu        sync.Mutex
	isRunning bool
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func (s *blinker) start(interval time.Duration, toggle func() error) {
	s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.isRunning = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.runner(interval, toggle, s.stop, s.done)
}

func (s *blinker) runner(interval time.Duration, toggle func() error, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := toggle(); err != nil {
				slog.Error("Blink failed", "error", err)
			}
		}
	}
}

// halt stops the runner, if any, and waits for it to exit.
func (s *blinker) halt() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *blinker) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *blinker) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Led is a single LED on an output pin. It can be switched, blinked
// and, on PWM capable pins, dimmed.
type Led struct {
	board   *Board
	pin     string
	mu      sync.Mutex
	isOn    bool
	value   byte
	blinker blinker
}

// NewLed binds an LED to pin. Nothing is written to the pin until the
// first command.
func NewLed(board *Board, pin string) *Led {
	inst := &Led{board: board, pin: pin, value: 255}
	board.addOutput(inst)
	return inst
}

func (s *Led) Pin() string {
	return s.pin
}

// On stops blinking and switches the LED on.
func (s *Led) On() error {
	s.blinker.halt()
	return s.set(true)
}

// Off stops blinking and switches the LED off.
func (s *Led) Off() error {
	s.blinker.halt()
	return s.set(false)
}

// Toggle inverts the current state.
func (s *Led) Toggle() error {
	s.mu.Lock()
	on := !s.isOn
	s.mu.Unlock()
	return s.set(on)
}

// Blink toggles the LED every interval until Stop, On or Off is called.
func (s *Led) Blink(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("led %s: blink interval must be positive, got %v", s.pin, interval)
	}
	s.blinker.start(interval, s.Toggle)
	return nil
}

// Stop ends blinking and leaves the LED in its current state.
func (s *Led) Stop() {
	s.blinker.halt()
}

// Brightness sets the LED to value (0 off, 255 full) using PWM.
// Blinking continues with the new brightness.
func (s *Led) Brightness(value byte) error {
	s.mu.Lock()
	s.value = value
	s.isOn = value > 0
	s.mu.Unlock()
	if err := s.board.platform.PwmWrite(s.pin, value); err != nil {
		return fmt.Errorf("led %s: %w", s.pin, err)
	}
	return nil
}

// Interval returns the blink interval, zero if the LED never blinked.
func (s *Led) Interval() time.Duration {
	return s.blinker.currentInterval()
}

func (s *Led) IsBlinking() bool {
	return s.blinker.running()
}

func (s *Led) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOn
}

// Value returns the last brightness.
func (s *Led) Value() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Led) set(on bool) error {
	s.mu.Lock()
	s.isOn = on
	dimmed := s.value < 255
	value := s.value
	s.mu.Unlock()

	var err error
	switch {
	case dimmed && on:
		if value == 0 {
			value = 255
		}
		err = s.board.platform.PwmWrite(s.pin, value)
	case dimmed:
		err = s.board.platform.PwmWrite(s.pin, 0)
	default:
		err = s.board.platform.DigitalWrite(s.pin, on)
	}
	if err != nil {
		return fmt.Errorf("led %s: %w", s.pin, err)
	}
	return nil
}
