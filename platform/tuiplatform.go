package platform

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/logging"
)

// Step used by +/- to move the selected analog input.
const analogStep = 5

// TUIPlatform simulates the board in the terminal. Outputs are drawn as
// coloured dots, digital inputs are toggled with the number keys and
// analog inputs are moved with +/-.
type TUIPlatform struct {
	*AbstractPlatform
	tviewapp       *tview.Application
	intro          *tview.TextView
	pinView        *tview.TextView
	graphView      *tview.TextView
	logView        *tview.TextView
	ossignalChan   chan os.Signal
	mu             sync.Mutex
	inputs         map[string]bool
	analog         map[string]int
	keyToPin       map[rune]string
	digitalPins    []string
	analogPins     []string
	selectedAnalog int
	logFlushOnce   sync.Once
	redrawStop     chan struct{}
	redrawWg       sync.WaitGroup
}

func NewTUIPlatform(conf *c.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		ossignalChan:     ossignalchan,
		inputs:           make(map[string]bool),
		analog:           make(map[string]int),
		keyToPin:         make(map[rune]string),
		redrawStop:       make(chan struct{}),
	}
	for name := range conf.Board.Pins {
		inst.digitalPins = append(inst.digitalPins, name)
	}
	sort.Strings(inst.digitalPins)
	for name := range conf.Board.AnalogPins {
		inst.analogPins = append(inst.analogPins, name)
		inst.analog[name] = (c.ANALOG_MAX + 1) / 2
	}
	sort.Strings(inst.analogPins)
	// Keys 1..9 toggle the first nine digital pins when used as inputs.
	for i, name := range inst.digitalPins {
		if i >= 9 {
			break
		}
		inst.keyToPin[rune('1'+i)] = name
	}
	return inst
}

func (s *TUIPlatform) Start() error {
	s.initSimulationTUI()

	s.redrawWg.Add(1)
	go s.redrawDriver()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()

	close(s.redrawStop)
	s.redrawWg.Wait()

	// The log pane goes away with the TUI.
	logging.BufferOutput()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) DigitalWrite(pin string, high bool) error {
	if _, err := s.gpio(pin); err != nil {
		return err
	}
	s.record(PinState{Pin: pin, Mode: ModeOutput, High: high})
	return nil
}

func (s *TUIPlatform) PwmWrite(pin string, value byte) error {
	if _, err := s.gpio(pin); err != nil {
		return err
	}
	s.record(PinState{Pin: pin, Mode: ModePwm, High: value > 0, Duty: value})
	return nil
}

func (s *TUIPlatform) DigitalRead(pin string) (bool, error) {
	if _, err := s.gpio(pin); err != nil {
		return false, err
	}
	s.mu.Lock()
	high := s.inputs[pin]
	s.mu.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeInput, High: high})
	return high, nil
}

func (s *TUIPlatform) AnalogRead(pin string) (int, error) {
	if _, err := s.adcChannel(pin); err != nil {
		return 0, err
	}
	s.mu.Lock()
	value := s.analog[pin]
	s.mu.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeAnalog, Value: value})
	return value, nil
}

// Show displays a bar graph line in the graph pane.
func (s *TUIPlatform) Show(line string) {
	s.tviewapp.QueueUpdateDraw(func() {
		s.graphView.SetText(tview.Escape(line))
	})
}

func (s *TUIPlatform) toggleInput(pin string) {
	s.mu.Lock()
	s.inputs[pin] = !s.inputs[pin]
	high := s.inputs[pin]
	s.mu.Unlock()
	slog.Debug("Toggled simulated input", "pin", pin, "high", high)
}

func (s *TUIPlatform) moveAnalog(delta int) {
	if len(s.analogPins) == 0 {
		return
	}
	s.mu.Lock()
	pin := s.analogPins[s.selectedAnalog]
	s.analog[pin] = max(0, min(s.analog[pin]+delta, c.ANALOG_MAX))
	s.mu.Unlock()
}

func (s *TUIPlatform) selectNextAnalog() {
	if len(s.analogPins) == 0 {
		return
	}
	s.mu.Lock()
	s.selectedAnalog = (s.selectedAnalog + 1) % len(s.analogPins)
	s.mu.Unlock()
}

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	line1 := fmt.Sprintf("Hit [blue]1[-]...[blue]%d[-] to toggle an input pin", min(len(s.digitalPins), 9))
	line2 := "Hit [#ff0000]Tab[-] to select an analog pin, [#ff0000]+[-]/[#ff0000]-[-] to change its value"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOBOARD Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.pinView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.pinView.SetBorder(true).SetTitle(" Pins ").SetTitleColor(tcell.ColorLightBlue)
	s.pinView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.graphView = tview.NewTextView()
	s.graphView.SetBorder(true).SetTitle(" Graph ").SetTitleColor(tcell.ColorLightBlue)
	s.graphView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	pinHeight := len(s.digitalPins) + len(s.analogPins) + 2

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.pinView, pinHeight, 0, false).
		AddItem(s.graphView, 3, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logging.SetOutput(tview.ANSIWriter(s.logView))
			s.markReady()
		})
	})

	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyTab:
			s.selectNextAnalog()
			s.pinView.SetText(s.renderPins(s.PinStates()))
			return nil
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		case tcell.KeyRune:
			if pin, exist := s.keyToPin[event.Rune()]; exist {
				s.toggleInput(pin)
				return nil
			}
			switch event.Rune() {
			case 'q', 'Q':
				s.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				s.ossignalChan <- syscall.SIGHUP
				return nil
			case '+':
				s.moveAnalog(analogStep)
				return nil
			case '-':
				s.moveAnalog(-analogStep)
				return nil
			}
		}
		return event
	})

	s.pinView.SetText(s.renderPins(nil))

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// redrawDriver redraws the pin pane whenever a pin changed. Bursts of
// changes collapse into one redraw.
func (s *TUIPlatform) redrawDriver() {
	defer s.redrawWg.Done()
	for {
		select {
		case <-s.redrawStop:
			slog.Info("Ending redraw go-routine...")
			return
		case <-s.pinChanges.Channel():
			s.pinChanges.ConsumeValues()
			text := s.renderPins(s.PinStates())
			s.tviewapp.QueueUpdateDraw(func() {
				s.pinView.SetText(text)
			})
		}
	}
}

// renderPins generates one line per configured pin.
func (s *TUIPlatform) renderPins(states map[string]PinState) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf strings.Builder
	for i, name := range s.digitalPins {
		key := " "
		if i < 9 {
			key = fmt.Sprintf("%d", i+1)
		}
		st := states[name]
		buf.WriteString(fmt.Sprintf(" [blue]%s[-] %-4s GPIO%-2d %-6s ", key, name, s.config.Board.Pins[name], st.Mode))
		switch st.Mode {
		case ModeOutput:
			buf.WriteString(ledDot(st.High, 255))
		case ModePwm:
			buf.WriteString(ledDot(st.Duty > 0, st.Duty))
			buf.WriteString(fmt.Sprintf(" %3d", st.Duty))
		case ModeInput:
			buf.WriteString(levelText(s.inputs[name]))
		}
		buf.WriteString("\n")
	}
	for i, name := range s.analogPins {
		marker := " "
		if i == s.selectedAnalog {
			marker = "[#ff0000]>[-]"
		}
		buf.WriteString(fmt.Sprintf(" %s %-4s ADC%-3d %-6s %4d\n", marker, name, s.config.Board.AnalogPins[name], ModeAnalog, s.analog[name]))
	}
	return buf.String()
}

func ledDot(on bool, duty byte) string {
	if !on {
		return "[#404040]●[-]"
	}
	return fmt.Sprintf("[#%02x0000]●[-]", max(duty, 60))
}

func levelText(high bool) string {
	if high {
		return "[#00ff00]HIGH[-]"
	}
	return "[#808080]LOW[-]"
}
