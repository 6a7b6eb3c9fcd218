package experiment

import (
	"errors"
	"fmt"
	"time"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
	"lautenbacher.net/goboard/display"
	"lautenbacher.net/goboard/notify"
	"lautenbacher.net/goboard/telemetry"
)

var ErrUnknownExperiment = errors.New("unknown experiment")

// Experiment is a small program that sets up its peripherals once the
// board is ready and then reacts to timers and input events.
type Experiment interface {
	Name() string
	// Ready creates the peripherals on board and starts the behaviour.
	// It runs on the board loop.
	Ready(board *device.Board) error
	// Stop ends timers and waits for pending work.
	Stop()
}

// Deps are the collaborators an experiment may need beside the board.
type Deps struct {
	Sender    notify.Sender
	Recorder  telemetry.Recorder
	GraphSink display.Sink
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Recorder == nil {
		d.Recorder = telemetry.NopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Names lists the experiments known to New.
var Names = []string{"blink", "rainbow", "intruder", "mirror"}

// New creates the named experiment from conf.
func New(name string, conf *c.Config, deps Deps) (Experiment, error) {
	deps = deps.withDefaults()
	switch name {
	case "blink", "rainbow", "intruder", "mirror":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExperiment, name)
	}
	if err := conf.ValidatePins(name); err != nil {
		return nil, err
	}

	switch name {
	case "blink":
		return NewBlink(conf.Blink), nil
	case "rainbow":
		return NewRainbow(conf.Rainbow), nil
	case "intruder":
		if deps.Sender == nil {
			return nil, fmt.Errorf("intruder: %w", notify.ErrMissingCredentials)
		}
		return NewIntruder(conf.Intruder, deps), nil
	default:
		return NewMirror(conf.Mirror, deps), nil
	}
}

// Attach runs exp's Ready handler on board.
func Attach(board *device.Board, exp Experiment) {
	board.OnReady(func() error {
		if err := exp.Ready(board); err != nil {
			return fmt.Errorf("%s: %w", exp.Name(), err)
		}
		return nil
	})
}
