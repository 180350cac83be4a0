// Package ds1307 implements a driver for the DS1307 serial real-time clock: reading and
// setting the time, starting and halting the oscillator, the square wave output and the
// 56 bytes of battery-backed RAM.
//
// Every operation is a single I2C transaction built phase by phase on an
// i2cmaster.Master. The device probes the bus once, on first use or through Initialize,
// and remembers the outcome of the most recent call in LastError. A Device is not safe
// for concurrent use.
//
// Datasheet: https://www.analog.com/media/en/technical-documentation/data-sheets/DS1307.pdf
package ds1307

import (
	"errors"
	"fmt"
	"time"

	"github.com/ajanata/drivers/i2cmaster"
)

var (
	ErrInvalidArgument = errors.New("ds1307: invalid argument")
	ErrInvalidState    = errors.New("ds1307: no bus")
	ErrInvalidTime     = errors.New("ds1307: registers do not hold a valid time")
)

const (
	probeTimeout = time.Second
	timeout      = 5 * time.Second
)

// SyncPin is an optional input wired to the SQW/OUT pin. Initialize configures it as a
// pulled-up input with interrupts disabled before touching the bus.
type SyncPin interface {
	ConfigurePullup() error
	DisableInterrupt() error
	ConfigureInput() error
}

type Config struct {
	Address uint8
	// SyncPin is optional.
	SyncPin SyncPin
	// Location is used by NowTime and SetTime. Defaults to time.Local.
	Location *time.Location
}

type Device struct {
	noCopy noCopy

	bus         i2cmaster.Master
	addr        uint8
	sync        SyncPin
	loc         *time.Location
	initialized bool
	lastErr     error
}

// New creates a new DS1307 driver on bus, which must outlive the Device. It does not
// touch the bus.
func New(bus i2cmaster.Master) *Device {
	d := &Device{
		bus:  bus,
		addr: Address,
	}
	if bus == nil {
		d.lastErr = ErrInvalidArgument
	}
	return d
}

// Configure applies c and initializes the device again.
func (d *Device) Configure(c Config) error {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.Address > 0x7F {
		return d.record(fmt.Errorf("%w: address 0x%02x", ErrInvalidArgument, c.Address))
	}
	d.addr = c.Address
	d.sync = c.SyncPin
	d.loc = c.Location
	d.initialized = false
	return d.Initialize()
}

// Move returns a Device that takes over d's bus and settings. d is left without a bus,
// so any further use of it fails with ErrInvalidState.
func (d *Device) Move() *Device {
	n := &Device{
		bus:         d.bus,
		addr:        d.addr,
		sync:        d.sync,
		loc:         d.loc,
		initialized: d.initialized,
		lastErr:     d.lastErr,
	}
	d.bus = nil
	d.initialized = false
	return n
}

// LastError returns the outcome of the most recent call: nil if it succeeded.
func (d *Device) LastError() error {
	return d.lastErr
}

// Initialized reports whether the bus probe has succeeded.
func (d *Device) Initialized() bool {
	return d.initialized
}

// Initialize configures the sync pin, if any, and probes the device address. It does
// nothing once it has succeeded; after a failure the next call starts over.
func (d *Device) Initialize() error {
	if d.initialized {
		return d.record(nil)
	}
	if d.bus == nil {
		return d.record(ErrInvalidState)
	}
	if d.sync != nil {
		if err := configureSyncPin(d.sync); err != nil {
			return d.record(err)
		}
	}
	t := d.begin()
	t.start()
	t.beginWrite()
	t.stop()
	if err := d.execute(t, probeTimeout); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

func configureSyncPin(p SyncPin) error {
	if err := p.ConfigurePullup(); err != nil {
		return err
	}
	if err := p.DisableInterrupt(); err != nil {
		return err
	}
	return p.ConfigureInput()
}

// Running reports whether the oscillator is running, that is, whether the clock halt
// bit is clear.
func (d *Device) Running(running *bool) error {
	if running == nil {
		return d.record(ErrInvalidArgument)
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	buf := [1]byte{}
	if err := d.readRegisters(Seconds, buf[:]); err != nil {
		return err
	}
	*running = buf[0]>>7 == 0
	return nil
}

// SetRunning halts or restarts the oscillator without changing the time.
func (d *Device) SetRunning(run bool) error {
	if err := d.Initialize(); err != nil {
		return err
	}
	buf := [1]byte{}
	if err := d.readRegisters(Seconds, buf[:]); err != nil {
		return err
	}
	if run {
		buf[0] &^= clockHalt
	} else {
		buf[0] |= clockHalt
	}
	return d.writeRegisters(Seconds, buf[0])
}

// Now reads the current time into t. The weekday register is skipped, so t.Weekday is
// left as it was.
func (d *Device) Now(t *Time) error {
	if t == nil {
		return d.record(ErrInvalidArgument)
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	buf := [7]byte{}
	if err := d.readRegisters(Seconds, buf[:]); err != nil {
		return err
	}
	t.Second = bcdToDec(buf[0] &^ clockHalt)
	t.Minute = bcdToDec(buf[1] & 0x7F)
	t.Hour = hoursToDec(buf[2])
	t.Day = bcdToDec(buf[4] & 0x3F)
	t.Month = bcdToDec(buf[5]&0x1F) - 1
	t.Year = bcdToDec(buf[6]) + 100
	return nil
}

// NowTime reads the current time and interprets it in the configured location. It fails
// with ErrInvalidTime if the registers do not name a real date, as on a device that has
// never been set.
func (d *Device) NowTime(t *time.Time) error {
	if t == nil {
		return d.record(ErrInvalidArgument)
	}
	var tm Time
	if err := d.Now(&tm); err != nil {
		return err
	}
	if !tm.Valid() {
		return d.record(fmt.Errorf("%w: %v", ErrInvalidTime, tm))
	}
	*t = tm.In(d.location())
	return nil
}

// Set writes t to the clock. Writing the seconds register clears the clock halt bit, so
// this starts the oscillator if it was stopped.
func (d *Device) Set(t *Time) error {
	if t == nil {
		return d.record(ErrInvalidArgument)
	}
	if err := t.checkRanges(true); err != nil {
		return d.record(fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	return d.writeRegisters(Seconds,
		decToBcd(t.Second),
		decToBcd(t.Minute),
		decToBcd(t.Hour),
		decToBcd(t.Weekday+1),
		decToBcd(t.Day),
		decToBcd(t.Month+1),
		decToBcd(t.Year-100),
	)
}

// SetTime sets the clock to t as seen in the configured location. Like Set, it starts
// the oscillator.
func (d *Device) SetTime(t time.Time) error {
	tm := TimeOf(t.In(d.location()))
	return d.Set(&tm)
}

// SquareWave reads the square wave output configuration. Reserved bits are dropped.
func (d *Device) SquareWave(mode *SquareWave) error {
	if mode == nil {
		return d.record(ErrInvalidArgument)
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	buf := [1]byte{}
	if err := d.readRegisters(Control, buf[:]); err != nil {
		return err
	}
	*mode = SquareWave(buf[0] & controlMask)
	return nil
}

// SetSquareWave configures the square wave output.
func (d *Device) SetSquareWave(mode SquareWave) error {
	if mode&^controlMask != 0 {
		return d.record(fmt.Errorf("%w: square wave 0x%02x sets reserved bits", ErrInvalidArgument, uint8(mode)))
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	return d.writeRegisters(Control, uint8(mode))
}

func (d *Device) location() *time.Location {
	if d.loc == nil {
		return time.Local
	}
	return d.loc
}

// readRegisters reads len(buf) consecutive registers starting at reg. Every byte but
// the last is acknowledged.
func (d *Device) readRegisters(reg uint8, buf []byte) error {
	t := d.begin()
	t.start()
	t.beginWrite()
	t.write(reg)
	t.start()
	t.beginRead()
	if n := len(buf); n > 1 {
		t.readBuffer(buf[:n-1], i2cmaster.ACK)
	}
	t.read(&buf[len(buf)-1], i2cmaster.NACK)
	t.stop()
	return d.execute(t, timeout)
}

// writeRegisters writes data one byte per phase starting at reg.
func (d *Device) writeRegisters(reg uint8, data ...byte) error {
	t := d.begin()
	t.start()
	t.beginWrite()
	t.write(reg)
	for _, b := range data {
		t.write(b)
	}
	t.stop()
	return d.execute(t, timeout)
}

func (d *Device) begin() *txn {
	return &txn{cmd: d.bus.NewCommand(), addr: d.addr}
}

// execute runs t unless one of its phases failed.
func (d *Device) execute(t *txn, timeout time.Duration) error {
	if t.err != nil {
		return d.record(t.err)
	}
	return d.record(d.bus.Execute(t.cmd, timeout))
}

func (d *Device) record(err error) error {
	d.lastErr = err
	return err
}

// noCopy lets go vet's copylocks check catch copies of a Device.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
