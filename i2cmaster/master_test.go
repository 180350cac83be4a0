package i2cmaster

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type busFunc func(addr uint16, w, r []byte) error

func (f busFunc) Tx(addr uint16, w, r []byte) error { return f(addr, w, r) }

func mustBuild(c *qt.C, steps ...func(cmd *Cmd) error) *Cmd {
	c.Helper()
	cmd := NewCmd()
	for _, step := range steps {
		c.Assert(step(cmd), qt.IsNil)
	}
	return cmd
}

func start(cmd *Cmd) error { return cmd.Start() }
func stop(cmd *Cmd) error  { return cmd.Stop() }

func beginWrite(addr uint8) func(*Cmd) error {
	return func(cmd *Cmd) error { return cmd.BeginWrite(addr, true) }
}

func beginRead(addr uint8) func(*Cmd) error {
	return func(cmd *Cmd) error { return cmd.BeginRead(addr, true) }
}

func write(b ...byte) func(*Cmd) error {
	return func(cmd *Cmd) error { return cmd.WriteBuffer(b, true) }
}

func read(buf []byte, ack Ack) func(*Cmd) error {
	return func(cmd *Cmd) error { return cmd.ReadBuffer(buf, ack) }
}

func TestRegisterReadIsOneTx(t *testing.T) {
	c := qt.New(t)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0x00}, R: []byte{0x12, 0x34, 0x56}},
		},
		DontPanic: true,
	}
	var head [2]byte
	var last byte
	cmd := mustBuild(c,
		start, beginWrite(0x68), write(0x00),
		start, beginRead(0x68),
		read(head[:], ACK),
		func(cmd *Cmd) error { return cmd.Read(&last, NACK) },
		stop,
	)

	err := NewMaster(bus).Execute(cmd, time.Second)
	c.Assert(err, qt.IsNil)
	c.Assert(head, qt.Equals, [2]byte{0x12, 0x34})
	c.Assert(last, qt.Equals, byte(0x56))
	c.Assert(bus.Close(), qt.IsNil)
}

func TestWriteOnly(t *testing.T) {
	c := qt.New(t)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0x07, 0x10}},
		},
		DontPanic: true,
	}
	cmd := mustBuild(c, start, beginWrite(0x68), write(0x07), write(0x10), stop)

	c.Assert(NewMaster(bus).Execute(cmd, time.Second), qt.IsNil)
	c.Assert(bus.Close(), qt.IsNil)
}

func TestAddressOnlyReadsOneByte(t *testing.T) {
	c := qt.New(t)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, R: []byte{0x42}},
			{Addr: 0x50, R: []byte{0x00}},
		},
		DontPanic: true,
	}
	m := NewMaster(bus)

	c.Assert(m.Execute(mustBuild(c, start, beginWrite(0x68), stop), time.Second), qt.IsNil)
	c.Assert(m.Execute(mustBuild(c, start, beginRead(0x50), stop), time.Second), qt.IsNil)
	c.Assert(bus.Close(), qt.IsNil)
}

func TestAddressOnlyNeverSendsEmptyTx(t *testing.T) {
	c := qt.New(t)
	errNack := errors.New("address not acknowledged")
	bus := busFunc(func(addr uint16, w, r []byte) error {
		if len(w) == 0 && len(r) == 0 {
			// i2c-dev reports success here without addressing anything
			return nil
		}
		return errNack
	})
	cmd := mustBuild(c, start, beginWrite(0x68), stop)

	err := NewMaster(bus).Execute(cmd, time.Second)
	c.Assert(err, qt.ErrorIs, errNack)
}

func TestStopSplitsWriteAndRead(t *testing.T) {
	c := qt.New(t)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x20, W: []byte{0xFE}},
			{Addr: 0x20, R: []byte{0xAA}},
		},
		DontPanic: true,
	}
	var b [1]byte
	cmd := mustBuild(c,
		start, beginWrite(0x20), write(0xFE), stop,
		start, beginRead(0x20), read(b[:], NACK), stop,
	)

	c.Assert(NewMaster(bus).Execute(cmd, time.Second), qt.IsNil)
	c.Assert(b[0], qt.Equals, byte(0xAA))
	c.Assert(bus.Close(), qt.IsNil)
}

func TestBusErrorIsWrapped(t *testing.T) {
	c := qt.New(t)
	errNack := errors.New("nack")
	bus := busFunc(func(addr uint16, w, r []byte) error { return errNack })
	cmd := mustBuild(c, start, beginWrite(0x68), stop)

	err := NewMaster(bus).Execute(cmd, time.Second)
	c.Assert(err, qt.ErrorIs, errNack)
	c.Assert(err, qt.ErrorMatches, `i2cmaster: tx 0x68: nack`)
}

func TestTimeout(t *testing.T) {
	c := qt.New(t)
	now := time.Unix(1000, 0)
	var b [1]byte
	bus := busFunc(func(addr uint16, w, r []byte) error {
		now = now.Add(2 * time.Second)
		r[0] = 0xFF
		return nil
	})
	m := NewMaster(bus)
	m.now = func() time.Time { return now }
	cmd := mustBuild(c, start, beginRead(0x68), read(b[:], NACK), stop)

	c.Assert(m.Execute(cmd, time.Second), qt.ErrorIs, ErrTimeout)
	c.Assert(b[0], qt.Equals, byte(0), qt.Commentf("read data must be discarded after a timeout"))

	c.Assert(m.Execute(cmd, 5*time.Second), qt.IsNil)
	c.Assert(b[0], qt.Equals, byte(0xFF))
}

func TestExecuteRejects(t *testing.T) {
	c := qt.New(t)
	bus := busFunc(func(addr uint16, w, r []byte) error {
		c.Errorf("unexpected Tx to 0x%02x", addr)
		return nil
	})
	m := NewMaster(bus)
	var buf [3]byte

	tests := []struct {
		name  string
		steps []func(*Cmd) error
		err   error
	}{{
		name: "empty",
		err:  ErrNoStop,
	}, {
		name:  "missing stop",
		steps: []func(*Cmd) error{start, beginWrite(0x68), write(0x00)},
		err:   ErrNoStop,
	}, {
		name:  "acked last byte",
		steps: []func(*Cmd) error{start, beginRead(0x68), read(buf[:], ACK), stop},
		err:   ErrAckSequence,
	}, {
		name:  "nack in the middle",
		steps: []func(*Cmd) error{start, beginRead(0x68), read(buf[:1], NACK), read(buf[1:], LastNACK), stop},
		err:   ErrAckSequence,
	}, {
		name:  "nack on a buffer",
		steps: []func(*Cmd) error{start, beginRead(0x68), read(buf[:], NACK), stop},
		err:   ErrAckSequence,
	}}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			cmd := mustBuild(c, test.steps...)
			c.Assert(m.Execute(cmd, time.Second), qt.ErrorIs, test.err)
		})
	}

	c.Assert(m.Execute(foreignCommand{}, time.Second), qt.ErrorIs, ErrForeignCommand)
}

func TestLastNACKBuffer(t *testing.T) {
	c := qt.New(t)
	bus := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x68, W: []byte{0x08}, R: []byte{1, 2, 3, 4}}},
		DontPanic: true,
	}
	buf := make([]byte, 4)
	cmd := mustBuild(c, start, beginWrite(0x68), write(0x08), start, beginRead(0x68), read(buf, LastNACK), stop)

	c.Assert(NewMaster(bus).Execute(cmd, 0), qt.IsNil)
	c.Assert(buf, qt.DeepEquals, []byte{1, 2, 3, 4})
}

type foreignCommand struct{ Command }
