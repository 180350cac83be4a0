package ds1307

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// SquareWave is the raw control register value driving the SQW/OUT pin.
type SquareWave uint8

const (
	SquareWaveOff   SquareWave = 0x00 // output held low
	SquareWaveOn    SquareWave = 0x80 // output held high
	SquareWave1Hz   SquareWave = 0x10
	SquareWave4kHz  SquareWave = 0x11 // 4.096kHz
	SquareWave8kHz  SquareWave = 0x12 // 8.192kHz
	SquareWave32kHz SquareWave = 0x13 // 32.768kHz
)

var squareWaveNames = map[SquareWave]string{
	SquareWaveOff:   "off",
	SquareWaveOn:    "on",
	SquareWave1Hz:   "1hz",
	SquareWave4kHz:  "4khz",
	SquareWave8kHz:  "8khz",
	SquareWave32kHz: "32khz",
}

func (s SquareWave) String() string {
	if n, ok := squareWaveNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SquareWave(0x%02x)", uint8(s))
}

// Oscillating reports whether the output toggles rather than holding a level.
func (s SquareWave) Oscillating() bool {
	return s&0x10 != 0
}

// Frequency returns the output frequency, or 0 for a fixed level.
func (s SquareWave) Frequency() physic.Frequency {
	if !s.Oscillating() {
		return 0
	}
	return rates[s&0x03]
}

var rates = [4]physic.Frequency{
	physic.Hertz,
	4096 * physic.Hertz,
	8192 * physic.Hertz,
	32768 * physic.Hertz,
}

// ParseSquareWave parses the names String produces.
func ParseSquareWave(name string) (SquareWave, error) {
	name = strings.ToLower(name)
	for s, n := range squareWaveNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("ds1307: unknown square wave mode %q", name)
}
