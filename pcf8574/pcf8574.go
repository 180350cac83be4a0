// Package pcf8574 is a driver for the PCF8574 I2C GPIO expander.
//
// This expander is somewhat limited: Each pin can be set to either high (with a weak pullup) or low (grounded), as well
// as read. To use a pin for input, set it to "high" and check to see if something is forcing it to be low. To use a pin
// for output, they can sink a small amount of current when set to "low".
//
// The chip will generate an interrupt on the rising and falling edge of any input ("high") pin. The interrupt line is
// shared by all eight pins and is not managed here.
//
// Datasheet: https://cdn-learn.adafruit.com/assets/assets/000/113/910/original/pcf8574.pdf
package pcf8574

import (
	"errors"
	"fmt"
	"time"

	"github.com/ajanata/drivers/i2cmaster"
)

const DefaultAddress = 0x20

const timeout = time.Second

var ErrInvalidPin = errors.New("pcf8574: pin out of range 0-7")

type Device struct {
	bus  i2cmaster.Master
	addr uint8
	// current state of pins as we've defined them
	state uint8
}

type Config struct {
	Address uint8
}

type Report uint8

// New creates a new driver on the specified I2C master. The datasheet claims a maximum speed of 100 kHz.
func New(bus i2cmaster.Master) *Device {
	return &Device{
		bus:  bus,
		addr: DefaultAddress,
		// defaults to everything high
		state: 0xFF,
	}
}

func (d *Device) Configure(c Config) {
	if c.Address == 0 {
		c.Address = DefaultAddress
	}

	d.addr = c.Address
}

// SetPin configures a single pin based on val: True to activate the weak pullup resistor, false to sink current.
func (d *Device) SetPin(pin uint8, val bool) error {
	if pin > 7 {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	if val {
		d.state = d.state | 1<<pin
	} else {
		d.state = d.state & ^(1 << pin)
	}
	return d.send()
}

// SetAll configures all pins at once based on their bit in state: True to activate the weak pullup resistor, false to sink current.
func (d *Device) SetAll(state uint8) error {
	d.state = state
	return d.send()
}

// State returns the levels last written to the pins.
func (d *Device) State() uint8 {
	return d.state
}

func (d *Device) send() error {
	cmd := d.bus.NewCommand()
	return d.run(cmd,
		cmd.Start,
		func() error { return cmd.BeginWrite(d.addr, true) },
		func() error { return cmd.Write(d.state, true) },
		cmd.Stop,
	)
}

// Read reads the status of every pin and returns a Report which can be used to check specific pins.
func (d *Device) Read() (Report, error) {
	var b byte
	cmd := d.bus.NewCommand()
	// the chip doesn't have any registers and just returns the data directly when read
	err := d.run(cmd,
		cmd.Start,
		func() error { return cmd.BeginRead(d.addr, true) },
		func() error { return cmd.Read(&b, i2cmaster.NACK) },
		cmd.Stop,
	)
	return Report(b), err
}

func (d *Device) run(cmd i2cmaster.Command, phases ...func() error) error {
	for _, phase := range phases {
		if err := phase(); err != nil {
			return err
		}
	}
	return d.bus.Execute(cmd, timeout)
}

// Pin reports whether the specified pin is high.
func (r Report) Pin(p uint8) bool {
	return r&(1<<p) > 0
}

// Pin is a single expander pin used as an input, for instance as the sync pin of a
// DS1307 whose SQW/OUT line is wired to the expander.
type Pin struct {
	d *Device
	n uint8
}

// Pin returns a handle for pin n.
func (d *Device) Pin(n uint8) *Pin {
	return &Pin{d: d, n: n}
}

// ConfigurePullup drives the pin high, which on this chip means the weak pullup.
func (p *Pin) ConfigurePullup() error {
	return p.d.SetPin(p.n, true)
}

// DisableInterrupt does nothing: the interrupt line belongs to the whole chip.
func (p *Pin) DisableInterrupt() error {
	if p.n > 7 {
		return fmt.Errorf("%w: %d", ErrInvalidPin, p.n)
	}
	return nil
}

// ConfigureInput makes sure the pin is not sinking current so it can be read.
func (p *Pin) ConfigureInput() error {
	if p.d.state&(1<<p.n) != 0 {
		return nil
	}
	return p.d.SetPin(p.n, true)
}

// Get reads the pin.
func (p *Pin) Get() (bool, error) {
	r, err := p.d.Read()
	if err != nil {
		return false, err
	}
	return r.Pin(p.n), nil
}
