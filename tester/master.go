package tester

import (
	"fmt"
	"time"

	"github.com/ajanata/drivers/i2cmaster"
)

// Master is an i2cmaster.Master that logs every phase issued on its commands and can
// make one of them, or the execution, fail. Commands that get through are run on the
// wrapped bus by an i2cmaster.TxMaster.
type Master struct {
	tx *i2cmaster.TxMaster

	// Phases names, in order, every phase issued on commands from this master,
	// including a phase that was made to fail.
	Phases []string
	// FailPhase makes the FailPhase-th phase of every command (counting from 1) return
	// FailErr, or ErrInjected if FailErr is nil. Zero disables it.
	FailPhase int
	FailErr   error
	// ExecuteErr, when set, is returned by Execute without touching the bus.
	ExecuteErr error
	// Timeouts holds the timeout of every Execute call.
	Timeouts []time.Duration
}

func NewMaster(bus i2cmaster.Bus) *Master {
	return &Master{tx: i2cmaster.NewMaster(bus)}
}

// Reset forgets the recorded phases and timeouts.
func (m *Master) Reset() {
	m.Phases = nil
	m.Timeouts = nil
}

func (m *Master) NewCommand() i2cmaster.Command {
	return &command{m: m, cmd: i2cmaster.NewCmd()}
}

func (m *Master) Execute(cmd i2cmaster.Command, timeout time.Duration) error {
	m.Timeouts = append(m.Timeouts, timeout)
	c, ok := cmd.(*command)
	if !ok {
		return i2cmaster.ErrForeignCommand
	}
	if m.ExecuteErr != nil {
		return m.ExecuteErr
	}
	return m.tx.Execute(c.cmd, timeout)
}

type command struct {
	m   *Master
	cmd *i2cmaster.Cmd
	n   int
}

func (c *command) phase(name string, f func() error) error {
	c.n++
	c.m.Phases = append(c.m.Phases, name)
	if c.n == c.m.FailPhase {
		if c.m.FailErr != nil {
			return c.m.FailErr
		}
		return ErrInjected
	}
	return f()
}

func (c *command) Start() error {
	return c.phase("start", c.cmd.Start)
}

func (c *command) BeginWrite(addr uint8, ackCheck bool) error {
	return c.phase(fmt.Sprintf("begin-write 0x%02x", addr), func() error {
		return c.cmd.BeginWrite(addr, ackCheck)
	})
}

func (c *command) BeginRead(addr uint8, ackCheck bool) error {
	return c.phase(fmt.Sprintf("begin-read 0x%02x", addr), func() error {
		return c.cmd.BeginRead(addr, ackCheck)
	})
}

func (c *command) Write(b byte, ackCheck bool) error {
	return c.phase(fmt.Sprintf("write 0x%02x", b), func() error {
		return c.cmd.Write(b, ackCheck)
	})
}

func (c *command) WriteBuffer(buf []byte, ackCheck bool) error {
	return c.phase(fmt.Sprintf("write-buffer % x", buf), func() error {
		return c.cmd.WriteBuffer(buf, ackCheck)
	})
}

func (c *command) Read(b *byte, ack i2cmaster.Ack) error {
	return c.phase(fmt.Sprintf("read %v", ack), func() error {
		return c.cmd.Read(b, ack)
	})
}

func (c *command) ReadBuffer(buf []byte, ack i2cmaster.Ack) error {
	return c.phase(fmt.Sprintf("read-buffer %d %v", len(buf), ack), func() error {
		return c.cmd.ReadBuffer(buf, ack)
	})
}

func (c *command) Stop() error {
	return c.phase("stop", c.cmd.Stop)
}
