package experiment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
	"lautenbacher.net/goboard/display"
	"lautenbacher.net/goboard/notify"
	pl "lautenbacher.net/goboard/platform"
)

func testConfig() *c.Config {
	conf := &c.Config{}
	conf.Board.LoopDelay = 2 * time.Millisecond
	conf.Board.Pins = map[string]int{
		"a2": 17, "a3": 27, "a4": 22, "a5": 5, "a6": 6, "a7": 13, "b5": 18,
	}
	conf.Board.AnalogPins = map[string]byte{"a7": 0}
	conf.Blink = c.BlinkConfig{Pin: "a5", Interval: 500 * time.Millisecond}
	conf.Rainbow = c.RainbowConfig{Pins: []string{"a2", "a3", "a4", "a5", "a6", "a7"}, Interval: 500 * time.Millisecond}
	conf.Intruder = c.IntruderConfig{
		Pin: "a2", Invert: true,
		From: "206-516-6175", To: "206-306-3904",
		SendTimeout: time.Second,
	}
	conf.Mirror = c.MirrorConfig{
		SensorPin: "a7", Threshold: 5, Smoothing: 1,
		LedPin: "b5", Label: "My Data", Range: []int{0, 100}, Width: 10,
	}
	return conf
}

func testBoard(t *testing.T, conf *c.Config) (*device.Board, *pl.MemoryPlatform) {
	mem := pl.NewMemoryPlatform(conf)
	board := device.NewBoard(mem, conf.Board.LoopDelay)
	t.Cleanup(board.Stop)
	return board, mem
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	buf := &syncBuffer{}
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })
	return buf
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message{}, s.msgs...)
}

func TestNew(t *testing.T) {
	conf := testConfig()
	sender := &recordingSender{}
	for _, name := range Names {
		exp, err := New(name, conf, Deps{Sender: sender})
		require.NoError(t, err, name)
		assert.Equal(t, name, exp.Name())
	}

	_, err := New("disco", conf, Deps{})
	assert.ErrorIs(t, err, ErrUnknownExperiment)

	_, err = New("intruder", conf, Deps{})
	assert.ErrorIs(t, err, notify.ErrMissingCredentials)

	conf.Blink.Pin = "zz"
	_, err = New("blink", conf, Deps{})
	assert.ErrorContains(t, err, "not mapped")
}

func TestBlink(t *testing.T) {
	conf := testConfig()
	board, mem := testBoard(t, conf)
	exp := NewBlink(conf.Blink)
	require.NoError(t, mem.Start())
	require.NoError(t, exp.Ready(board))
	defer exp.Stop()

	assert.Equal(t, "a5", exp.Led().Pin())
	assert.True(t, exp.Led().IsBlinking())
	assert.Equal(t, 500*time.Millisecond, exp.Led().Interval())
}

func TestBlink_Toggles(t *testing.T) {
	conf := testConfig()
	conf.Blink.Interval = 5 * time.Millisecond
	board, mem := testBoard(t, conf)
	Attach(board, NewBlink(conf.Blink))
	require.NoError(t, board.Start())

	assert.Eventually(t, func() bool { return len(mem.HistoryFor("a5")) >= 3 }, time.Second, time.Millisecond)
	hist := mem.HistoryFor("a5")
	assert.True(t, hist[0].High)
	assert.False(t, hist[1].High)
}

func TestRainbow(t *testing.T) {
	conf := testConfig()
	board, mem := testBoard(t, conf)
	exp := NewRainbow(conf.Rainbow)
	require.NoError(t, mem.Start())
	require.NoError(t, exp.Ready(board))
	defer exp.Stop()

	assert.ElementsMatch(t, []string{"a2", "a3", "a4", "a5", "a6", "a7"}, exp.Leds().Pins())
	assert.True(t, exp.Leds().IsBlinking())
	assert.Equal(t, 500*time.Millisecond, exp.Leds().Interval())
}

func TestIntruder_SendsOnOpen(t *testing.T) {
	conf := testConfig()
	board, mem := testBoard(t, conf)
	sender := &recordingSender{}
	exp := NewIntruder(conf.Intruder, Deps{
		Sender: sender,
		Now:    func() time.Time { return time.UnixMilli(1700000000123) },
	})
	require.NoError(t, exp.Ready(board))
	require.NoError(t, board.Start())
	time.Sleep(10 * time.Millisecond)
	assert.True(t, exp.Door().Invert())
	assert.True(t, exp.Door().IsClosed(), "inverted switch reads closed at low level")
	assert.Empty(t, sender.sent(), "baseline must not alert")

	mem.SetInput("a2", true)
	assert.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, time.Millisecond)
	exp.Stop()

	msg := sender.sent()[0]
	assert.Equal(t, "206-516-6175", msg.From)
	assert.Equal(t, "206-306-3904", msg.To)
	assert.Equal(t, "Door opened at 1700000000123", msg.Body)
	assert.Regexp(t, regexp.MustCompile(` at \d+$`), msg.Body)

	// Closing does not alert.
	mem.SetInput("a2", false)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, sender.sent(), 1)
}

func TestIntruder_FailureLoggedOnce(t *testing.T) {
	logs := captureLogs(t)
	conf := testConfig()
	board, mem := testBoard(t, conf)
	sender := &recordingSender{err: errors.New("invalid number")}
	exp := NewIntruder(conf.Intruder, Deps{Sender: sender})
	require.NoError(t, exp.Ready(board))
	require.NoError(t, board.Start())
	time.Sleep(10 * time.Millisecond)

	mem.SetInput("a2", true)
	assert.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, time.Millisecond)
	exp.Stop()
	time.Sleep(10 * time.Millisecond)

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "level=ERROR"), out)
	assert.Contains(t, out, "invalid number")
	assert.Len(t, sender.sent(), 1, "no retry")
}

func TestIntruder_NightOnly(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		now      time.Time
		alert    bool
	}{
		// Seattle, UTC-7 in June, sunset around 21:10 local.
		{"seattle noon", 47.6, -122.3, time.Date(2024, time.June, 21, 19, 0, 0, 0, time.UTC), false},
		{"seattle late afternoon", 47.6, -122.3, time.Date(2024, time.June, 22, 1, 0, 0, 0, time.UTC), false},
		{"seattle 23:00", 47.6, -122.3, time.Date(2024, time.June, 22, 6, 0, 0, 0, time.UTC), true},
		{"seattle 03:00", 47.6, -122.3, time.Date(2024, time.June, 21, 10, 0, 0, 0, time.UTC), true},
		// Tokyo, UTC+9.
		{"tokyo noon", 35.7, 139.7, time.Date(2024, time.June, 21, 3, 0, 0, 0, time.UTC), false},
		{"tokyo 23:00", 35.7, 139.7, time.Date(2024, time.June, 21, 14, 0, 0, 0, time.UTC), true},
		// Svalbard has no sunset in June and no sunrise in December.
		{"midnight sun", 78.2, 15.6, time.Date(2024, time.June, 21, 23, 0, 0, 0, time.UTC), false},
		{"polar night", 78.2, 15.6, time.Date(2024, time.December, 21, 11, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig()
			conf.Intruder.NightOnly = true
			conf.Intruder.Latitude = tt.lat
			conf.Intruder.Longitude = tt.lon
			sender := &recordingSender{}
			exp := NewIntruder(conf.Intruder, Deps{Sender: sender, Now: func() time.Time { return tt.now }})
			exp.opened()
			exp.Stop()
			if tt.alert {
				assert.Len(t, sender.sent(), 1)
			} else {
				assert.Empty(t, sender.sent())
			}
		})
	}
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
}

type recordingRecorder struct {
	mu     sync.Mutex
	points []point
}

func (r *recordingRecorder) Record(measurement string, tags map[string]string, fields map[string]any, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, point{measurement: measurement, tags: tags, fields: fields})
}

func (r *recordingRecorder) Close() {}

func (r *recordingRecorder) named(measurement string) []point {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []point
	for _, p := range r.points {
		if p.measurement == measurement {
			ret = append(ret, p)
		}
	}
	return ret
}

func TestIntruder_RecordsDoorAndAlert(t *testing.T) {
	conf := testConfig()
	rec := &recordingRecorder{}
	sender := &recordingSender{err: errors.New("invalid number")}
	exp := NewIntruder(conf.Intruder, Deps{Sender: sender, Recorder: rec})

	exp.opened()
	exp.Stop()
	doors := rec.named("door")
	require.Len(t, doors, 1)
	assert.Equal(t, map[string]string{"pin": "a2"}, doors[0].tags)
	assert.Equal(t, map[string]any{"open": true}, doors[0].fields)
	alerts := rec.named("alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, map[string]any{"sent": false}, alerts[0].fields)

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	exp.opened()
	exp.Stop()
	assert.Len(t, rec.named("door"), 2)
	alerts = rec.named("alert")
	require.Len(t, alerts, 2)
	assert.Equal(t, map[string]any{"sent": true}, alerts[1].fields)
}

func TestIntruder_DaytimeRecordsDoorOnly(t *testing.T) {
	conf := testConfig()
	conf.Intruder.NightOnly = true
	conf.Intruder.Latitude = 47.6
	conf.Intruder.Longitude = -122.3
	rec := &recordingRecorder{}
	noon := time.Date(2024, time.June, 21, 19, 0, 0, 0, time.UTC)
	exp := NewIntruder(conf.Intruder, Deps{Sender: &recordingSender{}, Recorder: rec, Now: func() time.Time { return noon }})

	exp.opened()
	exp.Stop()
	assert.Len(t, rec.named("door"), 1)
	assert.Empty(t, rec.named("alert"))
}

func TestIntruder_Defaults(t *testing.T) {
	exp := NewIntruder(c.IntruderConfig{}, Deps{Sender: notify.LogSender{}})
	assert.Equal(t, defaultGreeting, exp.conf.Greeting)
	assert.Equal(t, defaultSendTimeout, exp.conf.SendTimeout)
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) Show(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *lineSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

var _ display.Sink = (*lineSink)(nil)

func TestMirror_NothingOnReady(t *testing.T) {
	conf := testConfig()
	board, mem := testBoard(t, conf)
	sink := &lineSink{}
	exp := NewMirror(conf.Mirror, Deps{GraphSink: sink})
	require.NoError(t, mem.Start())
	require.NoError(t, exp.Ready(board))

	assert.Empty(t, sink.all())
	assert.Empty(t, mem.HistoryFor("b5"))
}

func TestMirror_FollowsChanges(t *testing.T) {
	conf := testConfig()
	board, mem := testBoard(t, conf)
	sink := &lineSink{}
	rec := &recordingRecorder{}
	exp := NewMirror(conf.Mirror, Deps{GraphSink: sink, Recorder: rec})
	Attach(board, exp)
	mem.SetAnalog("a7", 512)
	require.NoError(t, board.Start())

	assert.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "My Data [█████░░░░░] 50", sink.all()[0])
	b5 := mem.HistoryFor("b5")
	require.Len(t, b5, 1)
	assert.Equal(t, byte(127), b5[0].Duty)
	assert.Eventually(t, func() bool { return len(rec.named("sensor")) == 1 }, time.Second, time.Millisecond)
	sensor := rec.named("sensor")[0]
	assert.Equal(t, map[string]string{"pin": "a7"}, sensor.tags)
	assert.Equal(t, map[string]any{"raw": 512, "scaled": 50, "brightness": 127}, sensor.fields)

	// Within the threshold: no update.
	mem.SetAnalog("a7", 515)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sink.all(), 1)
	assert.Len(t, rec.named("sensor"), 1, "one point per change event")

	mem.SetAnalog("a7", 1023)
	assert.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "My Data [██████████] 100", sink.all()[1])
	b5 = mem.HistoryFor("b5")
	assert.Equal(t, byte(255), b5[len(b5)-1].Duty)
	assert.Equal(t, 100, exp.Graph().Value())
	assert.Equal(t, 1023, exp.Sensor().Value())
	assert.Eventually(t, func() bool { return len(rec.named("sensor")) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, map[string]any{"raw": 1023, "scaled": 100, "brightness": 255}, rec.named("sensor")[1].fields)
}

func TestMirror_InvalidRange(t *testing.T) {
	conf := testConfig()
	conf.Mirror.Range = []int{10, 10}
	board, _ := testBoard(t, conf)
	assert.Error(t, NewMirror(conf.Mirror, Deps{}).Ready(board))
}
