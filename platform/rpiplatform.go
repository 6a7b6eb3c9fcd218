package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	c "lautenbacher.net/goboard/config"
	u "lautenbacher.net/goboard/util"
)

// RaspberryPiPlatform drives the GPIO header of a Raspberry Pi. Analog
// pins are channels of an MCP3008 ADC attached to SPI0.
type RaspberryPiPlatform struct {
	*AbstractPlatform
	pinMutex     sync.Mutex
	modes        map[int]PinMode
	spiMutex     sync.Mutex
	spiOpen      bool
	analogValues *u.AtomicMapEvent[int]
	sensorViewer *SensorViewer
	viewerStop   chan struct{}
	viewerWg     sync.WaitGroup
}

func NewRaspberryPiPlatform(conf *c.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		AbstractPlatform: newAbstractPlatform(conf),
		modes:            make(map[int]PinMode),
		analogValues:     u.NewAtomicMapEvent[int](),
		viewerStop:       make(chan struct{}),
	}
}

// SetSensorViewer attaches an optional TUI viewer for analog readings.
func (s *RaspberryPiPlatform) SetSensorViewer(v *SensorViewer) {
	s.sensorViewer = v
}

func (s *RaspberryPiPlatform) Start() error {
	slog.Info("Initialise GPIO and Spi...")
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}

	if len(s.config.Board.AnalogPins) > 0 {
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			rpio.Close()
			return fmt.Errorf("failed to begin spi: %w", err)
		}
		rpio.SpiSpeed(s.config.Board.SPIFrequency)
		rpio.SpiChipSelect(0)
		s.spiOpen = true
	}

	if s.sensorViewer != nil {
		s.viewerWg.Add(2)
		go s.sensorViewer.Start(s.viewerStop, &s.viewerWg)
		go s.feedSensorViewer()
	}

	s.markReady() // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	s.setInShutdown()

	close(s.viewerStop)
	s.viewerWg.Wait()

	s.pinMutex.Lock()
	for num, mode := range s.modes {
		pin := rpio.Pin(num)
		if mode == ModeOutput || mode == ModePwm {
			pin.Low()
			pin.Output()
		}
	}
	s.modes = make(map[int]PinMode)
	s.pinMutex.Unlock()

	if s.spiOpen {
		rpio.SpiEnd(rpio.Spi0)
		s.spiOpen = false
	}
	if err := rpio.Close(); err != nil {
		slog.Error("Error closing rpio", "error", err)
	}
}

// setMode switches the pin into mode unless it is already there. MUST
// be called with s.pinMutex held.
func (s *RaspberryPiPlatform) setMode(num int, mode PinMode) {
	if s.modes[num] == mode {
		return
	}
	pin := rpio.Pin(num)
	switch mode {
	case ModeOutput:
		pin.Output()
	case ModePwm:
		pin.Mode(rpio.Pwm)
		pin.Freq(s.config.Board.PWMFrequency)
	case ModeInput:
		pin.Input()
		// Switches connect the pin to 3V3, so an open circuit must read low.
		pin.PullDown()
	}
	s.modes[num] = mode
}

func (s *RaspberryPiPlatform) DigitalWrite(pin string, high bool) error {
	num, err := s.gpio(pin)
	if err != nil {
		return err
	}
	if s.inShutdown() {
		return errStopped
	}
	s.pinMutex.Lock()
	s.setMode(num, ModeOutput)
	if high {
		rpio.Pin(num).High()
	} else {
		rpio.Pin(num).Low()
	}
	s.pinMutex.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeOutput, High: high})
	return nil
}

func (s *RaspberryPiPlatform) PwmWrite(pin string, value byte) error {
	num, err := s.gpio(pin)
	if err != nil {
		return err
	}
	if s.inShutdown() {
		return errStopped
	}
	s.pinMutex.Lock()
	s.setMode(num, ModePwm)
	rpio.Pin(num).DutyCycle(uint32(value), 255)
	s.pinMutex.Unlock()
	s.record(PinState{Pin: pin, Mode: ModePwm, High: value > 0, Duty: value})
	return nil
}

func (s *RaspberryPiPlatform) DigitalRead(pin string) (bool, error) {
	num, err := s.gpio(pin)
	if err != nil {
		return false, err
	}
	s.pinMutex.Lock()
	s.setMode(num, ModeInput)
	high := rpio.Pin(num).Read() == rpio.High
	s.pinMutex.Unlock()
	s.record(PinState{Pin: pin, Mode: ModeInput, High: high})
	return high, nil
}

func (s *RaspberryPiPlatform) AnalogRead(pin string) (int, error) {
	channel, err := s.adcChannel(pin)
	if err != nil {
		return 0, err
	}
	if !s.spiOpen {
		return 0, fmt.Errorf("analog pin %q: spi is not open", pin)
	}
	value := mcp3008Decode(s.spiExchange(mcp3008Request(channel)))
	s.record(PinState{Pin: pin, Mode: ModeAnalog, Value: value})
	s.analogValues.Send(pin, value)
	return value, nil
}

func (s *RaspberryPiPlatform) spiExchange(data []byte) []byte {
	s.spiMutex.Lock()
	defer s.spiMutex.Unlock()
	rpio.SpiExchange(data)
	return data
}

// mcp3008Request builds the 3 byte single-ended conversion request for
// channel.
func mcp3008Request(channel byte) []byte {
	return []byte{1, (8 + channel) << 4, 0}
}

// mcp3008Decode extracts the 10 bit result from the response.
func mcp3008Decode(read []byte) int {
	return ((int(read[1]) & 3) << 8) + int(read[2])
}

func (s *RaspberryPiPlatform) feedSensorViewer() {
	defer s.viewerWg.Done()
	for {
		select {
		case <-s.viewerStop:
			slog.Info("Ending SensorViewer feed go-routine")
			return
		case <-s.analogValues.Channel():
			s.sensorViewer.Update(s.analogValues.ConsumeValues())
		}
	}
}
