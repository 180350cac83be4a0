// Command ds1307ctl reads and sets a DS1307 real-time clock on a Linux I2C bus.
//
//	ds1307ctl [-config file] <command> [args...]
//	ds1307ctl [-config file] shell
//	ds1307ctl [-config file] publish
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ajanata/drivers/ds1307"
	"github.com/ajanata/drivers/gpiopin"
	"github.com/ajanata/drivers/i2cmaster"
	"github.com/ajanata/drivers/internal/config"
	"github.com/ajanata/drivers/internal/console"
	"github.com/ajanata/drivers/rtcpub"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <command> [args...]\n\ncommands:\n%s", os.Args[0], console.Usage())
		fmt.Fprintf(flag.CommandLine.Output(), "  %-50s %s\n  %-50s %s\n\nflags:\n",
			"shell", "read commands from stdin",
			"publish", "publish the clock status over MQTT")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, flag.Args()); err != nil {
		if errors.Is(err, console.ErrUsage) || errors.Is(err, console.ErrUnknown) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Error("failed", zap.Strings("args", flag.Args()), zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initializing periph host drivers: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus.Name)
	if err != nil {
		return fmt.Errorf("opening i2c bus %q: %w", cfg.Bus.Name, err)
	}
	defer bus.Close()
	if speed, _ := cfg.BusSpeed(); speed != 0 {
		if err := bus.SetSpeed(speed); err != nil {
			return fmt.Errorf("setting bus speed %v: %w", speed, err)
		}
	}
	log.Debug("bus open", zap.Stringer("bus", bus))

	dc := ds1307.Config{Address: cfg.Device.Address}
	if dc.Location, err = cfg.Location(); err != nil {
		return err
	}
	if cfg.Device.SyncPin != "" {
		pin, err := gpiopin.ByName(cfg.Device.SyncPin)
		if err != nil {
			return err
		}
		dc.SyncPin = pin
	}
	rtc := ds1307.New(i2cmaster.NewMaster(bus))
	if err := rtc.Configure(dc); err != nil {
		return fmt.Errorf("ds1307 at 0x%02x: %w", dc.Address, err)
	}

	switch args[0] {
	case "shell":
		return newConsole(cfg, rtc, log).Shell(ctx, os.Stdin)
	case "publish":
		return publish(ctx, cfg, rtc, log)
	}
	return newConsole(cfg, rtc, log).Run(ctx, args)
}

func newConsole(cfg *config.Config, rtc *ds1307.Device, log *zap.Logger) *console.Console {
	timeout, _ := cfg.NTPTimeout()
	return &console.Console{
		RTC:        rtc,
		NTPServer:  cfg.NTP.Server,
		NTPTimeout: timeout,
		Out:        os.Stdout,
		Log:        log,
	}
}

func publish(ctx context.Context, cfg *config.Config, rtc *ds1307.Device, log *zap.Logger) error {
	interval, _ := cfg.MQTTInterval()
	timeout, _ := cfg.MQTTTimeout()
	opts := rtcpub.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      cfg.MQTT.QoS,
		Retain:   cfg.MQTT.Retain,
		Interval: interval,
		Timeout:  timeout,
	}
	client, err := rtcpub.Dial(opts)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Info("publishing", zap.String("broker", opts.Broker), zap.String("topic", opts.Topic), zap.Duration("interval", interval))

	err = rtcpub.New(rtc, client, opts, log).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
