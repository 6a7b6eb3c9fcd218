package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	u "lautenbacher.net/goboard/util"
)

// Sink receives rendered lines. The TUI platform, the sensor viewer and
// WriterSink implement it.
type Sink interface {
	Show(line string)
}

// BarGraph renders a labelled horizontal bar for a value in [low, high].
type BarGraph struct {
	label string
	low   int
	high  int
	width int
	sink  Sink
	mu    sync.Mutex
	value int
}

func NewBarGraph(label string, low, high, width int, sink Sink) (*BarGraph, error) {
	if low >= high {
		return nil, fmt.Errorf("bar graph %q: range [%d,%d] is empty", label, low, high)
	}
	if width < 1 {
		return nil, fmt.Errorf("bar graph %q: width must be positive, got %d", label, width)
	}
	return &BarGraph{label: label, low: low, high: high, width: width, sink: sink, value: low}, nil
}

// Update stores value (clamped to the range) and shows the graph.
func (s *BarGraph) Update(value int) {
	s.mu.Lock()
	s.value = max(s.low, min(value, s.high))
	line := s.render()
	s.mu.Unlock()
	if s.sink != nil {
		s.sink.Show(line)
	}
}

func (s *BarGraph) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Render returns the current graph line.
func (s *BarGraph) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

func (s *BarGraph) render() string {
	filled := u.Scale(s.value, s.low, s.high, 0, s.width)
	return fmt.Sprintf("%s [%s%s] %d", s.label,
		strings.Repeat("█", filled), strings.Repeat("░", s.width-filled), s.value)
}

// WriterSink redraws a single terminal line on every Show.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Show(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, "\r\x1b[K"+line)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

func (f SinkFunc) Show(line string) { f(line) }
