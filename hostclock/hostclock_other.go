//go:build !linux

package hostclock

import (
	"errors"
	"time"
)

func Synchronized() (bool, error) {
	return false, errors.ErrUnsupported
}

func Step(t time.Time) error {
	return errors.ErrUnsupported
}
