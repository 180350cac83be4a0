package i2cmaster

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCmdGrammar(t *testing.T) {
	c := qt.New(t)
	var b byte

	cmd := NewCmd()
	c.Assert(cmd.BeginWrite(0x68, true), qt.ErrorIs, ErrNoStart)
	c.Assert(cmd.Write(0, true), qt.ErrorIs, ErrNoStart)
	c.Assert(cmd.Stop(), qt.ErrorIs, ErrNoStart)

	c.Assert(cmd.Start(), qt.IsNil)
	c.Assert(cmd.Write(0, true), qt.ErrorIs, ErrNoAddress)
	c.Assert(cmd.BeginWrite(0x80, true), qt.ErrorIs, ErrInvalidAddress)
	c.Assert(cmd.BeginWrite(0x68, true), qt.IsNil)
	c.Assert(cmd.Read(&b, NACK), qt.ErrorIs, ErrDirection)
	c.Assert(cmd.WriteBuffer(nil, true), qt.ErrorIs, ErrEmptyBuffer)
	c.Assert(cmd.Write(0x07, true), qt.IsNil)

	c.Assert(cmd.Start(), qt.IsNil)
	c.Assert(cmd.BeginRead(0x68, true), qt.IsNil)
	c.Assert(cmd.Write(0, true), qt.ErrorIs, ErrDirection)
	c.Assert(cmd.Read(nil, NACK), qt.ErrorIs, ErrEmptyBuffer)
	c.Assert(cmd.ReadBuffer([]byte{0}, Ack(9)), qt.ErrorIs, ErrInvalidAck)
	c.Assert(cmd.Read(&b, NACK), qt.IsNil)
	c.Assert(cmd.Stop(), qt.IsNil)

	var ops []Op
	for _, p := range cmd.Phases() {
		ops = append(ops, p.Op)
	}
	c.Assert(ops, qt.DeepEquals, []Op{
		OpStart, OpBeginWrite, OpWrite, OpStart, OpBeginRead, OpRead, OpStop,
	})
}

func TestWriteBufferCopies(t *testing.T) {
	c := qt.New(t)
	buf := []byte{1, 2}
	cmd := NewCmd()
	c.Assert(cmd.Start(), qt.IsNil)
	c.Assert(cmd.BeginWrite(0x68, true), qt.IsNil)
	c.Assert(cmd.WriteBuffer(buf, true), qt.IsNil)
	buf[0] = 9
	c.Assert(cmd.Phases()[2].Data, qt.DeepEquals, []byte{1, 2})
}

func TestReadRecordsDestination(t *testing.T) {
	c := qt.New(t)
	var b byte
	cmd := NewCmd()
	c.Assert(cmd.Start(), qt.IsNil)
	c.Assert(cmd.BeginRead(0x68, true), qt.IsNil)
	c.Assert(cmd.Read(&b, NACK), qt.IsNil)
	c.Assert(cmd.Read(nil, NACK), qt.ErrorIs, ErrEmptyBuffer)

	p := cmd.Phases()[2]
	c.Assert(p.Byte, qt.Equals, &b)
	c.Assert(p.Data, qt.HasLen, 1)

	var last byte
	c.Assert(NewCmd().Read(&last, NACK), qt.ErrorIs, ErrNoStart)
}

func TestStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(OpBeginRead.String(), qt.Equals, "begin-read")
	c.Assert(Op(42).String(), qt.Equals, "Op(42)")
	c.Assert(LastNACK.String(), qt.Equals, "LastNACK")
	c.Assert(Ack(7).String(), qt.Equals, "Ack(7)")
}
