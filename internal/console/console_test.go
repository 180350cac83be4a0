package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajanata/drivers/ds1307"
	"github.com/ajanata/drivers/hostclock"
	"github.com/ajanata/drivers/ntpsync"
	"github.com/ajanata/drivers/tester"
)

func newConsole(c *qt.C) (*Console, *tester.DS1307, *bytes.Buffer) {
	sim := tester.NewDS1307(c)
	rtc := ds1307.New(tester.NewMaster(sim))
	c.Assert(rtc.Configure(ds1307.Config{Location: time.UTC}), qt.IsNil)
	var out bytes.Buffer
	return &Console{
		RTC:        rtc,
		NTPServer:  "ntp.example",
		NTPTimeout: time.Second,
		Out:        &out,
		Log:        zaptest.NewLogger(c),
	}, sim, &out
}

func run(c *qt.C, con *Console, out *bytes.Buffer, line string) string {
	c.Helper()
	out.Reset()
	c.Assert(con.Run(context.Background(), strings.Fields(line)), qt.IsNil)
	return out.String()
}

func TestSetAndGet(t *testing.T) {
	c := qt.New(t)
	con, sim, out := newConsole(c)

	run(c, con, out, "set 2024-02-29T23:59:58Z")
	c.Assert(sim.Registers[:7], qt.DeepEquals, []byte{0x58, 0x59, 0x23, 0x05, 0x29, 0x02, 0x24})
	c.Assert(run(c, con, out, "get"), qt.Equals, "2024-02-29T23:59:58Z\n")

	c.Assert(con.Run(context.Background(), []string{"set", "yesterday"}), qt.ErrorMatches, `parsing time .*`)
	c.Assert(con.Run(context.Background(), []string{"set"}), qt.ErrorIs, ErrUsage)
}

func TestGetUnsetClock(t *testing.T) {
	c := qt.New(t)
	con, _, out := newConsole(c)
	err := con.Run(context.Background(), []string{"get"})
	c.Assert(err, qt.ErrorIs, ds1307.ErrInvalidTime)
	c.Assert(out.String(), qt.Equals, "registers: 2000-00-00 00:00:00\n")
}

func TestRunningHaltStart(t *testing.T) {
	c := qt.New(t)
	con, sim, out := newConsole(c)

	c.Assert(run(c, con, out, "running"), qt.Equals, "running\n")
	run(c, con, out, "halt")
	c.Assert(sim.Registers[ds1307.Seconds], qt.Equals, byte(0x80))
	c.Assert(run(c, con, out, "running"), qt.Equals, "halted\n")
	run(c, con, out, "start")
	c.Assert(run(c, con, out, "running"), qt.Equals, "running\n")
}

func TestSquareWave(t *testing.T) {
	c := qt.New(t)
	con, sim, out := newConsole(c)

	c.Assert(run(c, con, out, "sqw"), qt.Equals, "off\n")
	c.Assert(run(c, con, out, "sqw 4khz"), qt.Equals, "4khz (4.096kHz)\n")
	c.Assert(sim.Registers[ds1307.Control], qt.Equals, byte(0x11))
	c.Assert(run(c, con, out, "sqw on"), qt.Equals, "on\n")

	c.Assert(con.Run(context.Background(), []string{"sqw", "loud"}), qt.ErrorMatches, `ds1307: unknown square wave mode "loud"`)
}

func TestRAM(t *testing.T) {
	c := qt.New(t)
	con, sim, out := newConsole(c)

	run(c, con, out, "ram write 0x10 cafe")
	c.Assert(sim.Registers[ds1307.RAMStart+0x10:ds1307.RAMStart+0x12], qt.DeepEquals, []byte{0xCA, 0xFE})
	c.Assert(run(c, con, out, "ram read 16 3"), qt.Equals, "cafe00\n")

	c.Assert(con.Run(context.Background(), []string{"ram", "read", "55", "2"}), qt.ErrorIs, ds1307.ErrInvalidArgument)
	c.Assert(con.Run(context.Background(), []string{"ram", "write", "0", "xyz"}), qt.ErrorMatches, "data: .*")
	c.Assert(con.Run(context.Background(), []string{"ram", "erase", "0", "1"}), qt.ErrorIs, ErrUsage)
}

func TestHostClock(t *testing.T) {
	c := qt.New(t)
	con, _, out := newConsole(c)
	when := time.Date(2025, time.March, 3, 3, 3, 3, 0, time.UTC)

	var forced []bool
	c.Patch(&sysToHC, func(rtc hostclock.RTC, force bool, log *zap.Logger) (time.Time, error) {
		forced = append(forced, force)
		return when, rtc.SetTime(when)
	})
	c.Patch(&hcToSys, func(rtc hostclock.RTC, log *zap.Logger) (time.Time, error) {
		var t time.Time
		return t, rtc.NowTime(&t)
	})

	c.Assert(run(c, con, out, "systohc"), qt.Equals, "2025-03-03T03:03:03Z\n")
	c.Assert(run(c, con, out, "systohc -force"), qt.Equals, "2025-03-03T03:03:03Z\n")
	c.Assert(forced, qt.DeepEquals, []bool{false, true})
	c.Assert(run(c, con, out, "hctosys"), qt.Equals, "2025-03-03T03:03:03Z\n")
	c.Assert(con.Run(context.Background(), []string{"systohc", "-now"}), qt.ErrorIs, ErrUsage)
}

func TestNTP(t *testing.T) {
	c := qt.New(t)
	con, _, out := newConsole(c)
	var servers []string
	c.Patch(&ntpSync, func(ctx context.Context, clock ntpsync.Clock, server string, log *zap.Logger) (time.Time, error) {
		servers = append(servers, server)
		_, ok := ctx.Deadline()
		c.Check(ok, qt.IsTrue)
		t := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
		return t, clock.SetTime(t)
	})

	c.Assert(run(c, con, out, "ntp"), qt.Equals, "2030-01-01T00:00:00Z\n")
	run(c, con, out, "ntp time.example")
	c.Assert(servers, qt.DeepEquals, []string{"ntp.example", "time.example"})
}

func TestUnknownCommand(t *testing.T) {
	c := qt.New(t)
	con, _, _ := newConsole(c)
	c.Assert(con.Run(context.Background(), []string{"reboot"}), qt.ErrorIs, ErrUnknown)
	c.Assert(con.Run(context.Background(), nil), qt.IsNil)
}

func TestShell(t *testing.T) {
	c := qt.New(t)
	con, sim, out := newConsole(c)
	in := strings.NewReader(`set "2024-06-01T12:00:00Z"
sqw 1hz
bogus
"unterminated
exit
get
`)
	c.Assert(con.Shell(context.Background(), in), qt.IsNil)
	c.Assert(sim.Registers[ds1307.Control], qt.Equals, byte(0x10))
	c.Assert(out.String(), qt.Equals, strings.Join([]string{
		"ds1307> ",
		"ds1307> 1hz (1Hz)\n",
		"ds1307> error: unknown command \"bogus\", try help\n",
		"ds1307> error: EOF found when expecting closing quote\n",
		"ds1307> ",
	}, ""))
}

func TestShellEOF(t *testing.T) {
	c := qt.New(t)
	con, _, out := newConsole(c)
	c.Assert(con.Shell(context.Background(), strings.NewReader("running\n")), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "ds1307> running\nds1307> \n")
}

func TestUsage(t *testing.T) {
	c := qt.New(t)
	u := Usage()
	c.Assert(strings.Count(u, "\n"), qt.Equals, len(commands))
	c.Assert(u, qt.Contains, "systohc [-force]")
}

func TestHelp(t *testing.T) {
	c := qt.New(t)
	con, _, out := newConsole(c)
	c.Assert(run(c, con, out, "help"), qt.Equals, Usage())
	c.Assert(Usage(), qt.Contains, "print the time")
}
