package ds1307

import "fmt"

// ReadRAM fills buf from the battery-backed RAM starting offset bytes in.
func (d *Device) ReadRAM(offset uint8, buf []byte) error {
	if err := checkRAM(offset, len(buf)); err != nil {
		return d.record(err)
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	return d.readRegisters(RAMStart+offset, buf)
}

// WriteRAM stores data in the battery-backed RAM starting offset bytes in. The RAM
// keeps its contents for as long as the backup battery lasts.
func (d *Device) WriteRAM(offset uint8, data []byte) error {
	if err := checkRAM(offset, len(data)); err != nil {
		return d.record(err)
	}
	if err := d.Initialize(); err != nil {
		return err
	}
	t := d.begin()
	t.start()
	t.beginWrite()
	t.write(RAMStart + offset)
	t.writeBuffer(data)
	t.stop()
	return d.execute(t, timeout)
}

func checkRAM(offset uint8, n int) error {
	if n == 0 || int(offset)+n > RAMSize {
		return fmt.Errorf("%w: RAM range %d+%d outside 0-%d", ErrInvalidArgument, offset, n, RAMSize)
	}
	return nil
}
