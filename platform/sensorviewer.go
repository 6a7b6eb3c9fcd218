package platform

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	maxSensorHistory = 500
	viewerTitle      = " GOBOARD Sensor Viewer "
	colWidth         = 18 // Width for each sensor's data column
)

// SensorViewer is a TUI component for watching live analog readings
// on the real hardware. It also shows the bar graph line, if any.
type SensorViewer struct {
	tuiApp       *tview.Application
	view         *tview.TextView
	graph        *tview.TextView
	sensorValues map[string]*deque.Deque[int]
	channels     map[string]byte
	sensorNames  []string
	mu           sync.Mutex
	ossignal     chan os.Signal
}

type sensorStats struct {
	min    int
	max    int
	mean   float64
	median float64
	stdDev float64
}

// NewSensorViewer creates a viewer for the given analog pins (pin
// name to ADC channel).
func NewSensorViewer(channels map[string]byte, ossignal chan os.Signal) *SensorViewer {
	sv := &SensorViewer{
		tuiApp:       tview.NewApplication(),
		sensorValues: make(map[string]*deque.Deque[int]),
		channels:     channels,
		sensorNames:  make([]string, 0, len(channels)),
		ossignal:     ossignal,
	}

	for name := range channels {
		sv.sensorNames = append(sv.sensorNames, name)
		sv.sensorValues[name] = new(deque.Deque[int])
		sv.sensorValues[name].Grow(maxSensorHistory)
	}
	sort.Slice(sv.sensorNames, func(i, j int) bool {
		return sv.channels[sv.sensorNames[i]] < sv.channels[sv.sensorNames[j]]
	})
	return sv
}

// Start initializes and runs the TUI. It should be called as a goroutine.
func (sv *SensorViewer) Start(stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	sv.setupUI()

	go func() {
		<-stopSignal
		slog.Info("Stopping SensorViewer TUI...")
		sv.tuiApp.Stop()
	}()

	if err := sv.tuiApp.Run(); err != nil {
		slog.Error("Error running SensorViewer TUI", "error", err)
		sv.ossignal <- os.Interrupt
		return
	}
	slog.Info("SensorViewer TUI has stopped.")
}

// Update appends the latest readings and schedules a redraw. Safe for
// concurrent use.
func (sv *SensorViewer) Update(latestValues map[string]int) {
	sv.mu.Lock()
	for name, value := range latestValues {
		if q, ok := sv.sensorValues[name]; ok {
			if q.Len() == maxSensorHistory {
				q.PopFront()
			}
			q.PushBack(value)
		}
	}
	line1, line2, line3 := sv.prepareDisplayStrings()
	sv.mu.Unlock()

	sv.tuiApp.QueueUpdateDraw(func() {
		sv.draw(line1, line2, line3)
	})
}

// Show displays a bar graph line below the statistics.
func (sv *SensorViewer) Show(line string) {
	sv.tuiApp.QueueUpdateDraw(func() {
		if sv.graph != nil {
			sv.graph.SetText(tview.Escape(line))
		}
	})
}

func (sv *SensorViewer) setupUI() {
	sv.view = tview.NewTextView()
	sv.view.SetDynamicColors(true)
	sv.view.SetTextAlign(tview.AlignLeft)
	sv.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	sv.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	sv.graph = tview.NewTextView()
	sv.graph.SetBackgroundColor(tcell.ColorDarkSlateGray)
	sv.graph.SetBorder(true).SetTitle(" Graph ").SetTitleColor(tcell.ColorLightBlue)

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitle(" GOBOARD ").SetTitleColor(tcell.ColorLightBlue)
	intro.SetText("Displaying real sensor values.\nHit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart")
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 4, 1, false)
	// 3 lines of text + 2 for the border.
	layout.AddItem(sv.view, 5, 1, true)
	layout.AddItem(sv.graph, 3, 1, false)

	sv.tuiApp.SetRoot(layout, true).SetFocus(sv.view)
	sv.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch string(event.Rune()) {
		case "q", "Q":
			sv.ossignal <- os.Interrupt
			return nil
		case "r", "R":
			sv.ossignal <- syscall.SIGHUP
			return nil
		}
		return event
	})
}

// prepareDisplayStrings generates the output strings from the current sensor data.
// This method MUST be called with the mutex already held.
func (sv *SensorViewer) prepareDisplayStrings() (string, string, string) {
	var buft, bufm, bufb strings.Builder

	buft.WriteString(fmt.Sprintf("[yellow]%-*s[white]", colWidth+4, " [min|mean|max]"))
	bufm.WriteString(fmt.Sprintf("[yellow]%-*s[white]", colWidth+4, " Median | Std Dev"))
	bufb.WriteString(fmt.Sprintf("[yellow]%-*s[white]", colWidth+4, " Pin: ADC channel"))

	for _, name := range sv.sensorNames {
		values := sv.sensorValues[name]
		data := make([]int, values.Len())
		for i := range values.Len() {
			data[i] = values.At(i)
		}
		stats := calculateStats(data)

		buft.WriteString(fmt.Sprintf(" [%4d|%4.0f|%4d] ", stats.min, math.Round(stats.mean), stats.max))
		bufm.WriteString(fmt.Sprintf("  %6.1f | %5.1f  ", stats.median, stats.stdDev))
		bufb.WriteString(fmt.Sprintf("     [blue]%3s:[-] %-3d     ", name, sv.channels[name]))
	}
	return buft.String(), bufm.String(), bufb.String()
}

// draw updates the TextView with the provided strings.
// This must be called from within the TUI's main thread via QueueUpdateDraw.
func (sv *SensorViewer) draw(line1, line2, line3 string) {
	sv.view.SetText(fmt.Sprintf("%s\n%s\n%s", line1, line2, line3))
}

func calculateStats(data []int) sensorStats {
	if len(data) == 0 {
		return sensorStats{}
	}

	var sum int
	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := float64(sum) / float64(len(data))

	sorted := make([]int, len(data))
	copy(sorted, data)
	sort.Ints(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2.0
	} else {
		median = float64(sorted[mid])
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (float64(v) - mean) * (float64(v) - mean)
	}
	stdDev := math.Sqrt(sumOfSquares / float64(len(data)))

	return sensorStats{
		min:    min,
		max:    max,
		mean:   mean,
		median: median,
		stdDev: stdDev,
	}
}
