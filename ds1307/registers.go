package ds1307

const (
	Address  = 0x68 // I2C address for DS1307
	Seconds  = 0x00 // Seconds, bit 7 is the clock halt flag
	Minutes  = 0x01 // Minutes
	Hours    = 0x02 // Hours, bit 6 selects 12-hour mode
	Weekday  = 0x03 // Day of the week, 1-7
	Date     = 0x04 // Day of the month
	Month    = 0x05 // Month, 1-12
	Year     = 0x06 // Year within the century, 00-99
	Control  = 0x07 // Square wave output control
	RAMStart = 0x08 // First byte of the battery-backed RAM
	RAMSize  = 56   // RAM runs to the end of the register space at 0x3F
)

const (
	clockHalt   = 0x80 // seconds: oscillator stopped
	hour12      = 0x40 // hours: 12-hour mode
	hourPM      = 0x20 // hours: PM in 12-hour mode
	controlMask = 0x93 // control: OUT, SQWE, RS1, RS0; the rest is reserved
)
