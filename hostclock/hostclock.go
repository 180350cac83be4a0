// Package hostclock copies time between the system clock and a DS1307, the way hwclock
// does with --hctosys and --systohc.
package hostclock

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrNotSynchronized = errors.New("hostclock: system clock is not synchronized")

// RTC is implemented by *ds1307.Device.
type RTC interface {
	NowTime(t *time.Time) error
	SetTime(t time.Time) error
}

var (
	synchronized = Synchronized
	step         = Step
	now          = time.Now
)

// HCToSys sets the system clock from rtc and returns the time it was set to. It needs
// CAP_SYS_TIME.
func HCToSys(rtc RTC, log *zap.Logger) (time.Time, error) {
	var t time.Time
	if err := rtc.NowTime(&t); err != nil {
		return time.Time{}, fmt.Errorf("hostclock: reading rtc: %w", err)
	}
	before := now()
	if err := step(t); err != nil {
		return time.Time{}, fmt.Errorf("hostclock: setting system clock: %w", err)
	}
	log.Info("system clock set from rtc", zap.Time("time", t), zap.Duration("step", t.Sub(before)))
	return t, nil
}

// SysToHC writes the system time to rtc. Unless force is set it refuses to do so while
// the kernel reports the system clock as unsynchronized, so that a clock that was never
// set does not overwrite a good RTC.
func SysToHC(rtc RTC, force bool, log *zap.Logger) (time.Time, error) {
	ok, err := synchronized()
	switch {
	case force:
		if err != nil || !ok {
			log.Warn("writing unsynchronized system time to rtc", zap.Error(err))
		}
	case err != nil:
		return time.Time{}, fmt.Errorf("hostclock: %w", err)
	case !ok:
		return time.Time{}, ErrNotSynchronized
	}
	t := now()
	if err := rtc.SetTime(t); err != nil {
		return time.Time{}, fmt.Errorf("hostclock: setting rtc: %w", err)
	}
	log.Info("rtc set from system clock", zap.Time("time", t))
	return t, nil
}
