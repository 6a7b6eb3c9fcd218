package platform

import (
	"fmt"
	"sync"

	c "lautenbacher.net/goboard/config"
	u "lautenbacher.net/goboard/util"
)

// AbstractPlatform implements the bookkeeping shared by all concrete
// platforms: pin name resolution, the pin state cache and the ready
// and shutdown signalling.
type AbstractPlatform struct {
	config         *c.Config
	statesMutex    sync.RWMutex
	states         map[string]PinState
	pinChanges     *u.AtomicMapEvent[PinState]
	readyChan      chan bool
	readyOnce      sync.Once
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *c.Config) *AbstractPlatform {
	return &AbstractPlatform{
		config:     conf,
		states:     make(map[string]PinState),
		pinChanges: u.NewAtomicMapEvent[PinState](),
		readyChan:  make(chan bool),
	}
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) markReady() {
	s.readyOnce.Do(func() { close(s.readyChan) })
}

// PinChanges delivers every pin state change, keyed by pin name.
func (s *AbstractPlatform) PinChanges() *u.AtomicMapEvent[PinState] {
	return s.pinChanges
}

func (s *AbstractPlatform) PinStates() map[string]PinState {
	s.statesMutex.RLock()
	defer s.statesMutex.RUnlock()
	ret := make(map[string]PinState, len(s.states))
	for k, v := range s.states {
		ret[k] = v
	}
	return ret
}

func (s *AbstractPlatform) pinState(pin string) PinState {
	s.statesMutex.RLock()
	defer s.statesMutex.RUnlock()
	return s.states[pin]
}

// record stores state and notifies listeners when something changed.
func (s *AbstractPlatform) record(state PinState) {
	s.statesMutex.Lock()
	old, found := s.states[state.Pin]
	s.states[state.Pin] = state
	s.statesMutex.Unlock()
	if !found || old != state {
		s.pinChanges.Send(state.Pin, state)
	}
}

func (s *AbstractPlatform) gpio(pin string) (int, error) {
	num, ok := s.config.Board.Pins[pin]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a digital pin", ErrUnknownPin, pin)
	}
	return num, nil
}

func (s *AbstractPlatform) adcChannel(pin string) (byte, error) {
	ch, ok := s.config.Board.AnalogPins[pin]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not an analog pin", ErrUnknownPin, pin)
	}
	return ch, nil
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *AbstractPlatform) inShutdown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.isShuttingDown
}
