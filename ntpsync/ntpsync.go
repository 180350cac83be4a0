// Package ntpsync sets a real-time clock from an SNTP server.
package ntpsync

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

const (
	packetSize = 48
	// seconds between the NTP epoch (1900) and the Unix epoch
	seventyYears = 2208988800

	modeServer = 4

	defaultPort    = "123"
	defaultTimeout = 5 * time.Second
)

var (
	ErrShortReply = errors.New("ntpsync: short reply")
	ErrNotServer  = errors.New("ntpsync: reply is not from a server")
	// ErrKissOfDeath is a stratum 0 reply: the server refuses to give the time.
	ErrKissOfDeath = errors.New("ntpsync: kiss of death")
)

// Clock is set by Sync. *ds1307.Device implements it.
type Clock interface {
	SetTime(t time.Time) error
}

// Query asks server for the time. The port defaults to 123. Without a deadline on ctx
// the exchange is abandoned after 5 seconds.
func Query(ctx context.Context, server string) (time.Time, error) {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, defaultPort)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", server)
	if err != nil {
		return time.Time{}, fmt.Errorf("ntpsync: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return time.Time{}, fmt.Errorf("ntpsync: %w", err)
	}

	b := make([]byte, packetSize)
	request(b)
	if _, err := conn.Write(b); err != nil {
		return time.Time{}, fmt.Errorf("ntpsync: sending request to %s: %w", server, err)
	}
	n, err := conn.Read(b)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return time.Time{}, fmt.Errorf("ntpsync: waiting for %s: %w", server, err)
	}
	return parse(b[:n])
}

func request(b []byte) {
	for i := range b {
		b[i] = 0
	}
	b[0] = 0b11100011 // LI, Version, Mode
	b[1] = 0          // Stratum, or type of clock
	b[2] = 6          // Polling Interval
	b[3] = 0xEC       // Peer Clock Precision
	// 8 bytes of zero for Root Delay & Root Dispersion
	b[12] = 49
	b[13] = 0x4E
	b[14] = 49
	b[15] = 52
}

func parse(b []byte) (time.Time, error) {
	if len(b) < packetSize {
		return time.Time{}, fmt.Errorf("%w: %d bytes", ErrShortReply, len(b))
	}
	if mode := b[0] & 0x07; mode != modeServer {
		return time.Time{}, fmt.Errorf("%w: mode %d", ErrNotServer, mode)
	}
	if b[1] == 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrKissOfDeath, b[12:16])
	}
	// the transmit timestamp starts at byte 40: seconds since 1900, then a 32 bit fraction
	secs := binary.BigEndian.Uint32(b[40:])
	frac := binary.BigEndian.Uint32(b[44:])
	nsec := (int64(frac) * int64(time.Second)) >> 32
	return time.Unix(unixSeconds(secs), nsec).UTC(), nil
}

// unixSeconds converts an NTP seconds field. With the top bit clear the timestamp is
// taken to be in era 1, which starts on 2036-02-07.
func unixSeconds(secs uint32) int64 {
	s := int64(secs)
	if secs < 0x80000000 {
		s += 1 << 32
	}
	return s - seventyYears
}

// Sync queries server and sets clock at the start of the next whole second, since the
// clock cannot hold anything finer. It returns the time that was set.
func Sync(ctx context.Context, clock Clock, server string, log *zap.Logger) (time.Time, error) {
	t, err := Query(ctx, server)
	if err != nil {
		return time.Time{}, err
	}
	received := time.Now()
	next := t.Truncate(time.Second).Add(time.Second)
	log.Debug("ntp reply", zap.String("server", server), zap.Time("time", t))

	timer := time.NewTimer(next.Sub(t) - time.Since(received))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-timer.C:
	}
	if err := clock.SetTime(next); err != nil {
		return time.Time{}, fmt.Errorf("ntpsync: setting clock: %w", err)
	}
	log.Info("clock set from ntp", zap.String("server", server), zap.Time("time", next))
	return next, nil
}
