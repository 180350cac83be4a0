// Package gpiopin adapts periph.io GPIO pins for use as a DS1307 sync pin on a host.
package gpiopin

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

var ErrNoPin = errors.New("gpiopin: no such pin")

// Pin keeps the pull and edge settings requested so far and applies them together,
// since periph configures both in a single In call.
type Pin struct {
	p    gpio.PinIn
	pull gpio.Pull
	edge gpio.Edge
}

func New(p gpio.PinIn) *Pin {
	return &Pin{
		p:    p,
		pull: gpio.PullNoChange,
		edge: gpio.NoEdge,
	}
}

// ByName looks the pin up in the periph registry. Host drivers must have been
// initialized.
func ByName(name string) (*Pin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoPin, name)
	}
	return New(p), nil
}

func (p *Pin) ConfigurePullup() error {
	p.pull = gpio.PullUp
	return p.apply()
}

func (p *Pin) DisableInterrupt() error {
	p.edge = gpio.NoEdge
	return p.apply()
}

func (p *Pin) ConfigureInput() error {
	return p.apply()
}

func (p *Pin) apply() error {
	if err := p.p.In(p.pull, p.edge); err != nil {
		return fmt.Errorf("gpiopin: %s: %w", p.p, err)
	}
	return nil
}

// Read returns the current level of the pin.
func (p *Pin) Read() gpio.Level {
	return p.p.Read()
}

// WaitFalling enables falling edge detection and waits for one. With the square wave
// output at 1Hz the falling edge marks the start of a new second.
func (p *Pin) WaitFalling(timeout time.Duration) (bool, error) {
	p.edge = gpio.FallingEdge
	if err := p.apply(); err != nil {
		return false, err
	}
	ok := p.p.WaitForEdge(timeout)
	p.edge = gpio.NoEdge
	return ok, p.apply()
}

func (p *Pin) String() string {
	return p.p.String()
}
