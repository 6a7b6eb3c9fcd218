package device

import (
	"log/slog"
	"sync"
	"time"

	pl "lautenbacher.net/goboard/platform"
)

// input is a peripheral that is polled by the board loop.
type input interface {
	poll()
}

// output is a peripheral with a timer (e.g. a blinking LED) that must
// be stopped together with the board.
type output interface {
	Stop()
}

// Board owns the event loop. Ready handlers run once when the
// platform signals readiness, then all inputs are polled every
// loopDelay. Handlers of input events run on the loop goroutine, one
// after the other.
type Board struct {
	platform      pl.Platform
	loopDelay     time.Duration
	mu            sync.Mutex
	readyHandlers []func() error
	inputs        []input
	outputs       []output
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func NewBoard(platform pl.Platform, loopDelay time.Duration) *Board {
	return &Board{
		platform:  platform,
		loopDelay: loopDelay,
		stopChan:  make(chan struct{}),
	}
}

// Platform returns the I/O backend of the board.
func (b *Board) Platform() pl.Platform {
	return b.platform
}

// OnReady registers a handler to run once the board is ready. Errors
// are logged; they do not stop the board.
func (b *Board) OnReady(handler func() error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readyHandlers = append(b.readyHandlers, handler)
}

// Start starts the platform and the board loop. It does not wait for
// readiness.
func (b *Board) Start() error {
	if err := b.platform.Start(); err != nil {
		return err
	}
	b.wg.Add(1)
	go b.run()
	return nil
}

// Stop ends the board loop, stops all timers and then the platform.
func (b *Board) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()

		b.mu.Lock()
		outputs := b.outputs
		b.mu.Unlock()
		for _, out := range outputs {
			out.Stop()
		}
		b.platform.Stop()
	})
}

func (b *Board) run() {
	defer b.wg.Done()

	select {
	case <-b.stopChan:
		return
	case <-b.platform.Ready():
	}
	slog.Info("Board ready")

	b.mu.Lock()
	handlers := b.readyHandlers
	b.mu.Unlock()
	for _, handler := range handlers {
		if err := handler(); err != nil {
			slog.Error("Ready handler failed", "error", err)
		}
	}

	ticker := time.NewTicker(b.loopDelay)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopChan:
			slog.Info("Ending board loop go-routine")
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

func (b *Board) poll() {
	b.mu.Lock()
	inputs := make([]input, len(b.inputs))
	copy(inputs, b.inputs)
	b.mu.Unlock()
	for _, in := range inputs {
		in.poll()
	}
}

func (b *Board) addInput(in input) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append(b.inputs, in)
}

func (b *Board) addOutput(out output) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, out)
}
