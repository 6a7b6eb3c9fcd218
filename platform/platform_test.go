package platform

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	c "lautenbacher.net/goboard/config"
)

func testConfig() *c.Config {
	conf := &c.Config{}
	conf.Board.LoopDelay = 10 * time.Millisecond
	conf.Board.Pins = map[string]int{"a2": 17, "a5": 5, "b5": 18}
	conf.Board.AnalogPins = map[string]byte{"a7": 0, "a6": 3}
	return conf
}

func TestMemoryPlatform_ReadyAfterStart(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	select {
	case <-p.Ready():
		t.Fatal("platform must not be ready before Start")
	default:
	}
	require.NoError(t, p.Start())
	select {
	case <-p.Ready():
	default:
		t.Fatal("platform must be ready after Start")
	}
	// Start twice must not panic on the closed ready channel.
	require.NoError(t, p.Start())
}

func TestMemoryPlatform_Writes(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	require.NoError(t, p.Start())

	require.NoError(t, p.DigitalWrite("a5", true))
	require.NoError(t, p.DigitalWrite("a5", false))
	require.NoError(t, p.PwmWrite("b5", 128))

	assert.Equal(t, []PinState{
		{Pin: "a5", Mode: ModeOutput, High: true},
		{Pin: "a5", Mode: ModeOutput, High: false},
		{Pin: "b5", Mode: ModePwm, High: true, Duty: 128},
	}, p.History())
	assert.Len(t, p.HistoryFor("a5"), 2)

	states := p.PinStates()
	assert.Equal(t, PinState{Pin: "a5", Mode: ModeOutput}, states["a5"])
	assert.Equal(t, byte(128), states["b5"].Duty)
}

func TestMemoryPlatform_Inputs(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	require.NoError(t, p.Start())

	high, err := p.DigitalRead("a2")
	require.NoError(t, err)
	assert.False(t, high)

	p.SetInput("a2", true)
	high, err = p.DigitalRead("a2")
	require.NoError(t, err)
	assert.True(t, high)

	p.SetAnalog("a7", 700)
	value, err := p.AnalogRead("a7")
	require.NoError(t, err)
	assert.Equal(t, 700, value)
	assert.Equal(t, ModeAnalog, p.PinStates()["a7"].Mode)

	assert.Panics(t, func() { p.SetAnalog("a7", 1024) })
}

func TestMemoryPlatform_UnknownPins(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	require.NoError(t, p.Start())

	err := p.DigitalWrite("c9", true)
	assert.True(t, errors.Is(err, ErrUnknownPin))
	_, err = p.DigitalRead("a7")
	assert.True(t, errors.Is(err, ErrUnknownPin), "analog pins are not digital pins")
	_, err = p.AnalogRead("a2")
	assert.True(t, errors.Is(err, ErrUnknownPin), "digital pins are not analog pins")
	err = p.PwmWrite("zz", 1)
	assert.True(t, errors.Is(err, ErrUnknownPin))
}

func TestMemoryPlatform_StoppedRejectsWrites(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	require.NoError(t, p.Start())
	p.Stop()
	assert.Error(t, p.DigitalWrite("a5", true))
	assert.Empty(t, p.History())
}

func TestAbstractPlatform_PinChangesOnlyOnChange(t *testing.T) {
	p := NewMemoryPlatform(testConfig())
	require.NoError(t, p.Start())

	require.NoError(t, p.DigitalWrite("a5", true))
	require.NoError(t, p.DigitalWrite("a5", true))
	changes := p.PinChanges().ConsumeValues()
	assert.Len(t, changes, 1)
	assert.True(t, changes["a5"].High)

	require.NoError(t, p.DigitalWrite("a5", true))
	assert.False(t, p.PinChanges().HasPending(), "repeating a state must not notify")
}

func TestPinMode_MarshalText(t *testing.T) {
	text, err := ModePwm.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pwm", string(text))
	assert.Equal(t, "-", ModeUnset.String())
}

func TestMcp3008(t *testing.T) {
	assert.Equal(t, []byte{1, 0x80, 0}, mcp3008Request(0))
	assert.Equal(t, []byte{1, 0xF0, 0}, mcp3008Request(7))

	assert.Equal(t, 1023, mcp3008Decode([]byte{0, 0xFF, 0xFF}))
	assert.Equal(t, 512, mcp3008Decode([]byte{0, 0x02, 0x00}))
	assert.Equal(t, 5, mcp3008Decode([]byte{0xFF, 0xFC, 0x05}), "only the low two bits of the second byte count")
}

func TestTUIPlatform_SimulatedInputs(t *testing.T) {
	p := NewTUIPlatform(testConfig(), nil)

	assert.Equal(t, []string{"a2", "a5", "b5"}, p.digitalPins)
	assert.Equal(t, []string{"a6", "a7"}, p.analogPins)
	assert.Equal(t, "a2", p.keyToPin['1'])
	assert.Equal(t, "b5", p.keyToPin['3'])

	high, err := p.DigitalRead("a2")
	require.NoError(t, err)
	assert.False(t, high)
	p.toggleInput("a2")
	high, err = p.DigitalRead("a2")
	require.NoError(t, err)
	assert.True(t, high)

	// Analog inputs start in the middle of the range.
	value, err := p.AnalogRead("a6")
	require.NoError(t, err)
	assert.Equal(t, 512, value)

	p.moveAnalog(analogStep)
	value, _ = p.AnalogRead("a6")
	assert.Equal(t, 517, value)

	p.selectNextAnalog()
	p.moveAnalog(-2000)
	value, _ = p.AnalogRead("a7")
	assert.Equal(t, 0, value, "analog values clamp at 0")
	p.moveAnalog(5000)
	value, _ = p.AnalogRead("a7")
	assert.Equal(t, c.ANALOG_MAX, value)
}

func TestTUIPlatform_RenderPins(t *testing.T) {
	p := NewTUIPlatform(testConfig(), nil)
	require.NoError(t, p.DigitalWrite("a5", true))
	require.NoError(t, p.PwmWrite("b5", 200))
	_, err := p.DigitalRead("a2")
	require.NoError(t, err)

	text := p.renderPins(p.PinStates())
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "a2")
	assert.Contains(t, lines[0], "LOW")
	assert.Contains(t, lines[1], "GPIO5")
	assert.Contains(t, lines[2], "pwm")
	assert.Contains(t, lines[2], "200")
	assert.Contains(t, lines[3], ">", "first analog pin is selected")
}
