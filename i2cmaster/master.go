package i2cmaster

import (
	"errors"
	"fmt"
	"time"
)

// Master creates commands and executes them on a bus. Execute blocks until the whole
// transaction has been carried out or the timeout has elapsed.
type Master interface {
	NewCommand() Command
	Execute(cmd Command, timeout time.Duration) error
}

// Bus is a combined write/read I2C transfer: write w to addr, then, after a repeated
// start, read len(r) bytes from it. Either slice may be empty.
//
// machine.I2C (TinyGo) and periph.io's i2c.Bus both have this method.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

var (
	ErrTimeout        = errors.New("i2cmaster: transaction timed out")
	ErrNoStop         = errors.New("i2cmaster: transaction does not end with a stop")
	ErrAckSequence    = errors.New("i2cmaster: read must acknowledge every byte but the last")
	ErrForeignCommand = errors.New("i2cmaster: command was not created by this master")
)

// TxMaster executes commands by lowering them into Tx calls.
type TxMaster struct {
	bus Bus
	now func() time.Time
}

// NewMaster returns a Master that drives bus. The bus must already be configured.
func NewMaster(bus Bus) *TxMaster {
	return &TxMaster{
		bus: bus,
		now: time.Now,
	}
}

// NewCommand returns an empty *Cmd.
func (m *TxMaster) NewCommand() Command {
	return NewCmd()
}

// Execute runs cmd, which must be a *Cmd. A write message followed by a repeated start
// and a read from the same address is sent as a single Tx. An address-only message is
// sent as a one-byte read whose data is discarded. The deadline is checked after
// every Tx; a transfer that ends past it is reported as ErrTimeout and its read data is
// discarded. A timeout of zero or less means no deadline.
func (m *TxMaster) Execute(cmd Command, timeout time.Duration) error {
	c, ok := cmd.(*Cmd)
	if !ok || c == nil {
		return ErrForeignCommand
	}
	msgs, err := lower(c.phases)
	if err != nil {
		return err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = m.now().Add(timeout)
	}
	for _, t := range plan(msgs) {
		w, r := t.buffers()
		if err := m.bus.Tx(uint16(t.addr), w, r); err != nil {
			return fmt.Errorf("i2cmaster: tx 0x%02x: %w", t.addr, err)
		}
		if !deadline.IsZero() && m.now().After(deadline) {
			return ErrTimeout
		}
		if t.read != nil {
			t.read.scatter(r)
		}
	}
	return nil
}

// message is everything sent between an address phase and the next start or stop.
type message struct {
	addr    uint8
	read    bool
	stopped bool // ended by a stop rather than a repeated start
	w       []byte
	reads   []Phase
	size    int
}

func (msg *message) scatter(r []byte) {
	for _, p := range msg.reads {
		n := copy(p.Data, r)
		if p.Byte != nil {
			*p.Byte = p.Data[0]
		}
		r = r[n:]
	}
}

// lower groups phases into messages and checks the parts of the grammar that Cmd
// cannot check while recording.
func lower(phases []Phase) ([]*message, error) {
	if len(phases) == 0 || phases[len(phases)-1].Op != OpStop {
		return nil, ErrNoStop
	}
	var (
		msgs []*message
		cur  *message
	)
	closeMsg := func(stopped bool) error {
		if cur == nil {
			return nil
		}
		if err := checkAcks(cur.reads); err != nil {
			return err
		}
		cur.stopped = stopped
		msgs = append(msgs, cur)
		cur = nil
		return nil
	}
	for _, p := range phases {
		var err error
		switch p.Op {
		case OpStart:
			err = closeMsg(false)
		case OpBeginWrite, OpBeginRead:
			if err = closeMsg(false); err == nil {
				cur = &message{addr: p.Addr, read: p.Op == OpBeginRead}
			}
		case OpWrite:
			cur.w = append(cur.w, p.Data...)
		case OpRead:
			cur.reads = append(cur.reads, p)
			cur.size += len(p.Data)
		case OpStop:
			err = closeMsg(true)
		}
		if err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// checkAcks requires every byte of a read message to be acknowledged except the
// final one.
func checkAcks(reads []Phase) error {
	for i, p := range reads {
		last := i == len(reads)-1
		switch {
		case !last && p.Ack != ACK:
			return ErrAckSequence
		case last && p.Ack == ACK:
			return ErrAckSequence
		case last && p.Ack == NACK && len(p.Data) > 1:
			return ErrAckSequence
		}
	}
	return nil
}

type transfer struct {
	addr  uint8
	write *message
	read  *message
}

// buffers returns the Tx arguments for t. A transfer with no data at all is sent as a
// one-byte read that is thrown away, the way i2cdetect -r probes, since Linux i2c-dev
// returns success for an empty transfer without touching the bus.
func (t transfer) buffers() (w, r []byte) {
	if t.write != nil {
		w = t.write.w
	}
	if t.read != nil {
		r = make([]byte, t.read.size)
	}
	if len(w) == 0 && len(r) == 0 {
		r = make([]byte, 1)
	}
	return w, r
}

func plan(msgs []*message) []transfer {
	var out []transfer
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		if msg.read {
			out = append(out, transfer{addr: msg.addr, read: msg})
			continue
		}
		t := transfer{addr: msg.addr, write: msg}
		if !msg.stopped && i+1 < len(msgs) && msgs[i+1].read && msgs[i+1].addr == msg.addr {
			t.read = msgs[i+1]
			i++
		}
		out = append(out, t)
	}
	return out
}
