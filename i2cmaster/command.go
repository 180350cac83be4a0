// Package i2cmaster builds I2C transactions phase by phase and executes them on a bus.
//
// A transaction is recorded as an ordered list of phases (start, address, data, stop)
// and handed to a Master in one go. Read phases carry a destination that is filled in
// when the transaction executes, so nothing can be read back before Execute returns.
package i2cmaster

import (
	"errors"
	"fmt"
)

// Ack selects what the master answers after each byte it reads.
type Ack uint8

const (
	ACK      Ack = iota // acknowledge every byte
	NACK                // do not acknowledge any byte
	LastNACK            // acknowledge every byte but the last
)

func (a Ack) String() string {
	switch a {
	case ACK:
		return "ACK"
	case NACK:
		return "NACK"
	case LastNACK:
		return "LastNACK"
	}
	return fmt.Sprintf("Ack(%d)", uint8(a))
}

// Command accumulates the phases of one transaction. Every method reports whether the
// phase could be added; once one fails the command should be discarded.
type Command interface {
	Start() error
	BeginWrite(addr uint8, ackCheck bool) error
	BeginRead(addr uint8, ackCheck bool) error
	Write(b byte, ackCheck bool) error
	WriteBuffer(buf []byte, ackCheck bool) error
	Read(b *byte, ack Ack) error
	ReadBuffer(buf []byte, ack Ack) error
	Stop() error
}

var (
	ErrNoStart        = errors.New("i2cmaster: phase issued before start")
	ErrNoAddress      = errors.New("i2cmaster: data phase issued before an address phase")
	ErrDirection      = errors.New("i2cmaster: data phase does not match the addressed direction")
	ErrInvalidAddress = errors.New("i2cmaster: address is not a 7-bit address")
	ErrEmptyBuffer    = errors.New("i2cmaster: nil or empty buffer")
	ErrInvalidAck     = errors.New("i2cmaster: invalid ack value")
)

// Op identifies the kind of a recorded phase.
type Op uint8

const (
	OpStart Op = iota
	OpBeginWrite
	OpBeginRead
	OpWrite
	OpRead
	OpStop
)

var opNames = [...]string{
	OpStart:      "start",
	OpBeginWrite: "begin-write",
	OpBeginRead:  "begin-read",
	OpWrite:      "write",
	OpRead:       "read",
	OpStop:       "stop",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Phase is one recorded step of a transaction.
type Phase struct {
	Op       Op
	Addr     uint8  // OpBeginWrite, OpBeginRead
	Data     []byte // OpWrite: bytes to send; OpRead: destination
	Byte     *byte  // OpRead recorded by Read: receives Data[0]
	Ack      Ack    // OpRead
	AckCheck bool   // OpBeginWrite, OpBeginRead, OpWrite
}

type cmdState uint8

const (
	stateIdle cmdState = iota
	stateStarted
	stateWriting
	stateReading
)

// Cmd is the Command implementation understood by TxMaster. The zero value is ready to
// use.
type Cmd struct {
	phases []Phase
	state  cmdState
}

// NewCmd returns an empty command.
func NewCmd() *Cmd {
	return &Cmd{}
}

// Phases returns the phases recorded so far. The slice must not be modified.
func (c *Cmd) Phases() []Phase {
	return c.phases
}

// Start issues a start condition, or a repeated start inside a transaction.
func (c *Cmd) Start() error {
	c.phases = append(c.phases, Phase{Op: OpStart})
	c.state = stateStarted
	return nil
}

// BeginWrite sends addr with the write bit.
func (c *Cmd) BeginWrite(addr uint8, ackCheck bool) error {
	return c.begin(OpBeginWrite, stateWriting, addr, ackCheck)
}

// BeginRead sends addr with the read bit.
func (c *Cmd) BeginRead(addr uint8, ackCheck bool) error {
	return c.begin(OpBeginRead, stateReading, addr, ackCheck)
}

func (c *Cmd) begin(op Op, next cmdState, addr uint8, ackCheck bool) error {
	if c.state != stateStarted {
		return ErrNoStart
	}
	if addr > 0x7F {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidAddress, addr)
	}
	c.phases = append(c.phases, Phase{Op: op, Addr: addr, AckCheck: ackCheck})
	c.state = next
	return nil
}

// Write sends a single byte.
func (c *Cmd) Write(b byte, ackCheck bool) error {
	return c.WriteBuffer([]byte{b}, ackCheck)
}

// WriteBuffer sends every byte of buf. The bytes are copied.
func (c *Cmd) WriteBuffer(buf []byte, ackCheck bool) error {
	if err := c.expect(stateWriting); err != nil {
		return err
	}
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	c.phases = append(c.phases, Phase{Op: OpWrite, Data: data, AckCheck: ackCheck})
	return nil
}

// Read reads a single byte into b once the command is executed.
func (c *Cmd) Read(b *byte, ack Ack) error {
	if b == nil {
		return ErrEmptyBuffer
	}
	if err := c.ReadBuffer(make([]byte, 1), ack); err != nil {
		return err
	}
	c.phases[len(c.phases)-1].Byte = b
	return nil
}

// ReadBuffer fills buf once the command is executed.
func (c *Cmd) ReadBuffer(buf []byte, ack Ack) error {
	if err := c.expect(stateReading); err != nil {
		return err
	}
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	if ack > LastNACK {
		return ErrInvalidAck
	}
	c.phases = append(c.phases, Phase{Op: OpRead, Data: buf, Ack: ack})
	return nil
}

// Stop issues a stop condition.
func (c *Cmd) Stop() error {
	if c.state == stateIdle {
		return ErrNoStart
	}
	c.phases = append(c.phases, Phase{Op: OpStop})
	c.state = stateIdle
	return nil
}

func (c *Cmd) expect(s cmdState) error {
	switch c.state {
	case s:
		return nil
	case stateIdle:
		return ErrNoStart
	case stateStarted:
		return ErrNoAddress
	}
	return ErrDirection
}
