package core

import (
	"errors"
	"strconv"
	"sync"
)

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// ErrPinNotConfigured is returned when a pin is used before it is configured.
var ErrPinNotConfigured = errors.New("gpio: pin not configured")

// MemoryGPIO is a GPIODriver backed by a map. The host build uses it in place
// of real pins; tests drive switch inputs through SetPin.
type MemoryGPIO struct {
	mu   sync.Mutex
	pins map[GPIOPin]bool
}

// NewMemoryGPIO creates an empty driver.
func NewMemoryGPIO() *MemoryGPIO {
	return &MemoryGPIO{pins: make(map[GPIOPin]bool)}
}

func (m *MemoryGPIO) ConfigureOutput(pin GPIOPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[pin] = false
	return nil
}

// ConfigureInputPullUp configures pin as an input that idles high.
func (m *MemoryGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[pin]; !ok {
		m.pins[pin] = true
	}
	return nil
}

func (m *MemoryGPIO) SetPin(pin GPIOPin, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[pin]; !ok {
		return ErrPinNotConfigured
	}
	m.pins[pin] = value
	return nil
}

func (m *MemoryGPIO) GetPin(pin GPIOPin) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pins[pin]
	if !ok {
		return false, ErrPinNotConfigured
	}
	return v, nil
}

// LookupPin parses a pin name of the form "gpioN".
func LookupPin(name string) (GPIOPin, error) {
	if len(name) < 5 || name[:4] != "gpio" {
		return 0, errors.New("gpio: invalid pin name " + strconv.Quote(name))
	}
	n, err := strconv.ParseUint(name[4:], 10, 8)
	if err != nil {
		return 0, errors.New("gpio: invalid pin name " + strconv.Quote(name))
	}
	return GPIOPin(n), nil
}

// Indicator is the status LED driven by the heartbeats.
type Indicator interface {
	Toggle()
}

// PinIndicator drives an Indicator through a GPIO output pin.
type PinIndicator struct {
	driver GPIODriver
	pin    GPIOPin
	state  bool
}

// NewPinIndicator configures pin as an output and returns an indicator
// starting in the off state.
func NewPinIndicator(driver GPIODriver, pin GPIOPin) (*PinIndicator, error) {
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	return &PinIndicator{driver: driver, pin: pin}, nil
}

// Toggle flips the LED.
func (p *PinIndicator) Toggle() {
	p.state = !p.state
	if err := p.driver.SetPin(p.pin, p.state); err != nil {
		Logger().Debug().Err(err).Uint32("pin", uint32(p.pin)).Msg("indicator toggle failed")
	}
}

// On reports the last state written to the pin.
func (p *PinIndicator) On() bool {
	return p.state
}
