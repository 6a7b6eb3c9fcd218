package platform

import (
	"errors"
)

// ErrUnknownPin is returned for pin names that are not mapped in the
// board configuration.
var ErrUnknownPin = errors.New("unknown pin")

// Platform abstracts the board I/O so the same experiments run on the
// real hardware, in the TUI simulation and in tests.
type Platform interface {
	// Start initializes the platform (e.g., opens GPIO/SPI, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once the board can be used.
	Ready() <-chan bool

	// DigitalWrite drives an output pin high or low.
	DigitalWrite(pin string, high bool) error

	// PwmWrite sets the duty cycle of a pin, 0 (off) to 255 (fully on).
	PwmWrite(pin string, value byte) error

	// DigitalRead returns the level of an input pin.
	DigitalRead(pin string) (bool, error)

	// AnalogRead returns the raw reading of an analog pin, 0 to 1023.
	AnalogRead(pin string) (int, error)

	// PinStates returns a snapshot of the last known state of every pin
	// that has been used so far.
	PinStates() map[string]PinState
}

type PinMode int

const (
	ModeUnset PinMode = iota
	ModeOutput
	ModePwm
	ModeInput
	ModeAnalog
)

func (m PinMode) String() string {
	switch m {
	case ModeOutput:
		return "out"
	case ModePwm:
		return "pwm"
	case ModeInput:
		return "in"
	case ModeAnalog:
		return "analog"
	default:
		return "-"
	}
}

// MarshalText lets pin modes show up by name in the JSON pin API.
func (m PinMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// PinState is the last known state of a single pin.
type PinState struct {
	Pin   string
	Mode  PinMode
	High  bool
	Duty  byte
	Value int
}
