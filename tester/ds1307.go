package tester

// DS1307 simulates the register file of a DS1307. It implements i2cmaster.Bus.
//
// Like the real part it keeps a single register pointer: a write sets it from the first
// byte and stores the rest, a read continues from wherever it points, and it wraps from
// 0x3F to 0x00.
type DS1307 struct {
	c Failer

	Addr      uint16
	Registers [64]byte
	// Err, when set, is returned by every Tx.
	Err error
	// Txs counts the transfers that reached the device.
	Txs int

	pointer uint8
}

// NewDS1307 returns a device at the default address with all registers zero.
func NewDS1307(c Failer) *DS1307 {
	return &DS1307{
		c:    c,
		Addr: 0x68,
	}
}

func (d *DS1307) Tx(addr uint16, w, r []byte) error {
	if d.Err != nil {
		return d.Err
	}
	if addr != d.Addr {
		return ErrNoDevice
	}
	d.Txs++
	if len(w) > 0 {
		if int(w[0]) >= len(d.Registers) {
			d.c.Helper()
			d.c.Fatalf("ds1307: register pointer set to 0x%02x", w[0])
		}
		d.pointer = w[0]
		for _, b := range w[1:] {
			d.Registers[d.pointer] = b
			d.advance()
		}
	}
	for i := range r {
		r[i] = d.Registers[d.pointer]
		d.advance()
	}
	return nil
}

func (d *DS1307) advance() {
	d.pointer = (d.pointer + 1) % uint8(len(d.Registers))
}
