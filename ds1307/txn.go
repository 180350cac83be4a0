package ds1307

import "github.com/ajanata/drivers/i2cmaster"

// txn adds phases to a command until one of them fails. Later phases are not issued
// once err is set.
type txn struct {
	cmd  i2cmaster.Command
	addr uint8
	err  error
}

func (t *txn) start() {
	if t.err == nil {
		t.err = t.cmd.Start()
	}
}

func (t *txn) beginWrite() {
	if t.err == nil {
		t.err = t.cmd.BeginWrite(t.addr, true)
	}
}

func (t *txn) beginRead() {
	if t.err == nil {
		t.err = t.cmd.BeginRead(t.addr, true)
	}
}

func (t *txn) write(b byte) {
	if t.err == nil {
		t.err = t.cmd.Write(b, true)
	}
}

func (t *txn) writeBuffer(buf []byte) {
	if t.err == nil {
		t.err = t.cmd.WriteBuffer(buf, true)
	}
}

func (t *txn) read(b *byte, ack i2cmaster.Ack) {
	if t.err == nil {
		t.err = t.cmd.Read(b, ack)
	}
}

func (t *txn) readBuffer(buf []byte, ack i2cmaster.Ack) {
	if t.err == nil {
		t.err = t.cmd.ReadBuffer(buf, ack)
	}
}

func (t *txn) stop() {
	if t.err == nil {
		t.err = t.cmd.Stop()
	}
}
