package ds1307

import (
	"fmt"
	"time"
)

// Time is a broken-down calendar time with the same field ranges as C's struct tm.
// The DS1307 only holds years 2000-2099, so Year is 100-199 for anything the device
// can store.
type Time struct {
	Second  int // 0-59
	Minute  int // 0-59
	Hour    int // 0-23
	Day     int // day of the month, 1-31
	Month   int // months since January, 0-11
	Year    int // years since 1900
	Weekday int // days since Sunday, 0-6
}

// TimeOf breaks t down in its own location.
func TimeOf(t time.Time) Time {
	return Time{
		Second:  t.Second(),
		Minute:  t.Minute(),
		Hour:    t.Hour(),
		Day:     t.Day(),
		Month:   int(t.Month()) - 1,
		Year:    t.Year() - 1900,
		Weekday: int(t.Weekday()),
	}
}

// In returns the instant tm names in loc. Out-of-range fields are normalized the way
// time.Date does it. Weekday is ignored.
func (tm Time) In(loc *time.Location) time.Time {
	return time.Date(tm.Year+1900, time.Month(tm.Month+1), tm.Day, tm.Hour, tm.Minute, tm.Second, 0, loc)
}

// Valid reports whether every field except Weekday is in range and names a date that
// exists, within the years the device can hold.
func (tm Time) Valid() bool {
	return tm.checkRanges(false) == nil && tm.In(time.UTC).Day() == tm.Day
}

// checkRanges checks each field on its own, the way the registers hold them.
func (tm Time) checkRanges(weekday bool) error {
	fields := []struct {
		name     string
		v        int
		min, max int
	}{
		{"second", tm.Second, 0, 59},
		{"minute", tm.Minute, 0, 59},
		{"hour", tm.Hour, 0, 23},
		{"day", tm.Day, 1, 31},
		{"month", tm.Month, 0, 11},
		{"year", tm.Year, 100, 199},
	}
	for _, f := range fields {
		if f.v < f.min || f.v > f.max {
			return fmt.Errorf("%s %d out of range %d-%d", f.name, f.v, f.min, f.max)
		}
	}
	if weekday && (tm.Weekday < 0 || tm.Weekday > 6) {
		return fmt.Errorf("weekday %d out of range 0-6", tm.Weekday)
	}
	return nil
}

func (tm Time) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		tm.Year+1900, tm.Month+1, tm.Day, tm.Hour, tm.Minute, tm.Second)
}

// decToBcd converts int to BCD
func decToBcd(dec int) uint8 {
	return uint8(dec + 6*(dec/10))
}

// bcdToDec converts BCD to int
func bcdToDec(bcd uint8) int {
	return int(bcd - 6*(bcd>>4))
}

// hoursToDec decodes the hours register in either 12- or 24-hour mode.
func hoursToDec(v uint8) int {
	if v&hour12 == 0 {
		return bcdToDec(v & 0x3F)
	}
	h := bcdToDec(v&0x1F) % 12
	if v&hourPM != 0 {
		h += 12
	}
	return h
}
