// Package console implements the ds1307ctl commands, both for single invocations and
// for the interactive shell.
package console

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/ajanata/drivers/ds1307"
	"github.com/ajanata/drivers/hostclock"
	"github.com/ajanata/drivers/ntpsync"
)

var (
	ErrUsage   = errors.New("usage")
	ErrUnknown = errors.New("unknown command")
)

var (
	hcToSys = hostclock.HCToSys
	sysToHC = hostclock.SysToHC
	ntpSync = ntpsync.Sync
)

type Console struct {
	RTC        *ds1307.Device
	NTPServer  string
	NTPTimeout time.Duration
	Out        io.Writer
	Log        *zap.Logger
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"probe":   {"probe", "check that the clock answers", probe},
		"get":     {"get", "print the time", get},
		"set":     {"set <RFC3339|now>", "set the time and start the clock", set},
		"running": {"running", "report whether the oscillator runs", running},
		"halt":    {"halt", "stop the oscillator", halt},
		"start":   {"start", "restart the oscillator", start},
		"sqw":     {"sqw [off|on|1hz|4khz|8khz|32khz]", "show or set the square wave output", sqw},
		"ram":     {"ram read <offset> <n> | ram write <offset> <hex>", "access the battery-backed RAM", ram},
		"hctosys": {"hctosys", "set the system clock from the RTC", hctosys},
		"systohc": {"systohc [-force]", "set the RTC from the system clock", systohc},
		"ntp":     {"ntp [server]", "set the RTC from an NTP server", ntp},
		"help":    {"help", "list commands", help},
	}
}

// Run executes one command line, already split into words.
func (c *Console) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w %q, try help", ErrUnknown, args[0])
	}
	if err := cmd.run(ctx, c, args[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
		}
		return err
	}
	return nil
}

// Shell reads command lines from in until it ends, ctx is done, or the user types
// exit. Command errors are printed and do not end the shell.
func (c *Console) Shell(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.Out, "ds1307> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.Out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(c.Out, "error: %v\n", err)
			continue
		}
		if len(args) > 0 && (args[0] == "exit" || args[0] == "quit") {
			return nil
		}
		if err := c.Run(ctx, args); err != nil {
			c.Log.Debug("command failed", zap.Strings("args", args), zap.Error(err))
			fmt.Fprintf(c.Out, "error: %v\n", err)
		}
	}
}

func probe(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	if err := c.RTC.Initialize(); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, "ds1307 present")
	return nil
}

func get(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	var t time.Time
	err := c.RTC.NowTime(&t)
	if errors.Is(err, ds1307.ErrInvalidTime) {
		var raw ds1307.Time
		if c.RTC.Now(&raw) == nil {
			fmt.Fprintf(c.Out, "registers: %v\n", raw)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, t.Format(time.RFC3339))
	return nil
}

func set(_ context.Context, c *Console, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	var t time.Time
	if args[0] == "now" {
		t = time.Now()
	} else {
		var err error
		if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
			return err
		}
	}
	if err := c.RTC.SetTime(t); err != nil {
		return err
	}
	c.Log.Info("rtc set", zap.Time("time", t))
	return nil
}

func running(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	var running bool
	if err := c.RTC.Running(&running); err != nil {
		return err
	}
	if running {
		fmt.Fprintln(c.Out, "running")
	} else {
		fmt.Fprintln(c.Out, "halted")
	}
	return nil
}

func halt(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return c.RTC.SetRunning(false)
}

func start(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return c.RTC.SetRunning(true)
}

func sqw(_ context.Context, c *Console, args []string) error {
	var mode ds1307.SquareWave
	switch len(args) {
	case 0:
		if err := c.RTC.SquareWave(&mode); err != nil {
			return err
		}
	case 1:
		var err error
		if mode, err = ds1307.ParseSquareWave(args[0]); err != nil {
			return err
		}
		if err := c.RTC.SetSquareWave(mode); err != nil {
			return err
		}
	default:
		return ErrUsage
	}
	if mode.Oscillating() {
		fmt.Fprintf(c.Out, "%v (%v)\n", mode, mode.Frequency())
	} else {
		fmt.Fprintln(c.Out, mode)
	}
	return nil
}

func ram(_ context.Context, c *Console, args []string) error {
	if len(args) != 3 {
		return ErrUsage
	}
	offset, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("offset: %w", err)
	}
	switch args[0] {
	case "read":
		n, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil {
			return fmt.Errorf("length: %w", err)
		}
		buf := make([]byte, n)
		if err := c.RTC.ReadRAM(uint8(offset), buf); err != nil {
			return err
		}
		fmt.Fprintln(c.Out, hex.EncodeToString(buf))
		return nil
	case "write":
		data, err := hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("data: %w", err)
		}
		return c.RTC.WriteRAM(uint8(offset), data)
	}
	return ErrUsage
}

func hctosys(_ context.Context, c *Console, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	t, err := hcToSys(c.RTC, c.Log)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, t.Format(time.RFC3339))
	return nil
}

func systohc(_ context.Context, c *Console, args []string) error {
	force := false
	switch {
	case len(args) == 1 && args[0] == "-force":
		force = true
	case len(args) != 0:
		return ErrUsage
	}
	t, err := sysToHC(c.RTC, force, c.Log)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, t.Format(time.RFC3339))
	return nil
}

func ntp(ctx context.Context, c *Console, args []string) error {
	server := c.NTPServer
	switch len(args) {
	case 0:
	case 1:
		server = args[0]
	default:
		return ErrUsage
	}
	if c.NTPTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.NTPTimeout)
		defer cancel()
	}
	t, err := ntpSync(ctx, c.RTC, server, c.Log)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, t.Format(time.RFC3339))
	return nil
}

func help(_ context.Context, c *Console, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.Out, "  %-50s %s\n", commands[name].usage, commands[name].help)
	}
	return nil
}

// Usage lists the commands on one line each, for flag.Usage.
func Usage() string {
	var b strings.Builder
	// a strings.Builder never fails a write
	_ = help(context.Background(), &Console{Out: &b}, nil)
	return b.String()
}
