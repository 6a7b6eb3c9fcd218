package device

import (
	"log/slog"
	"sync"
)

type SwitchConfig struct {
	Pin string
	// Invert flips the reading, so a closed circuit reports "open".
	Invert bool
}

// Switch is a two state input. A high pin means the circuit is closed
// unless Invert is set. Handlers fire on transitions only; the first
// reading establishes the initial state without firing.
type Switch struct {
	cfg         SwitchConfig
	mu          sync.Mutex
	initialized bool
	closed      bool
	failing     bool
	onOpen      []func()
	onClose     []func()
}

// NewSwitch creates a switch and registers it with the board loop.
func NewSwitch(board *Board, cfg SwitchConfig) *Switch {
	inst := &Switch{cfg: cfg}
	board.addInput(&switchPoller{sw: inst, board: board})
	return inst
}

// OnOpen registers a handler for transitions to the open state.
func (s *Switch) OnOpen(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = append(s.onOpen, handler)
}

// OnClose registers a handler for transitions to the closed state.
func (s *Switch) OnClose(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, handler)
}

func (s *Switch) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Switch) IsOpen() bool {
	return !s.IsClosed()
}

func (s *Switch) Invert() bool {
	return s.cfg.Invert
}

func (s *Switch) Pin() string {
	return s.cfg.Pin
}

// update feeds a raw pin level into the switch and returns the handlers
// to run, if the state changed.
func (s *Switch) update(high bool) []func() {
	closed := high != s.cfg.Invert

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.initialized = true
		s.closed = closed
		return nil
	}
	if closed == s.closed {
		return nil
	}
	s.closed = closed
	if closed {
		return append([]func(){}, s.onClose...)
	}
	return append([]func(){}, s.onOpen...)
}

type switchPoller struct {
	sw    *Switch
	board *Board
}

func (p *switchPoller) poll() {
	high, err := p.board.platform.DigitalRead(p.sw.cfg.Pin)
	if err != nil {
		// Log once per failure streak, not every loop.
		p.sw.mu.Lock()
		first := !p.sw.failing
		p.sw.failing = true
		p.sw.mu.Unlock()
		if first {
			slog.Error("Reading switch failed", "pin", p.sw.cfg.Pin, "error", err)
		}
		return
	}
	p.sw.mu.Lock()
	p.sw.failing = false
	p.sw.mu.Unlock()

	for _, handler := range p.sw.update(high) {
		handler()
	}
}
