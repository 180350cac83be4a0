// Package tester contains simulated buses and devices for testing drivers without
// hardware.
package tester

import (
	"errors"
)

// Failer is implemented by *testing.T and *quicktest.C.
type Failer interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

var (
	// ErrNoDevice is what a simulated bus returns when nothing answers at an address.
	ErrNoDevice = errors.New("tester: no device acknowledged the address")
	// ErrInjected is returned by a phase chosen with Master.FailPhase when FailErr is nil.
	ErrInjected = errors.New("tester: injected phase failure")
)
