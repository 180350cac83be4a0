// Package rtcpub publishes the state of a DS1307 to an MQTT broker.
package rtcpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ajanata/drivers/ds1307"
)

var ErrPublishTimeout = errors.New("rtcpub: publish timed out")

// Clock is the part of *ds1307.Device that is reported.
type Clock interface {
	NowTime(t *time.Time) error
	Running(running *bool) error
	SquareWave(mode *ds1307.SquareWave) error
}

// Client is the part of mqtt.Client used for publishing.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retain   bool
	Interval time.Duration
	// Timeout bounds connecting and each publish.
	Timeout time.Duration
}

// Status is the JSON document published on every tick. Time is omitted when the clock
// could not be read or holds no valid date.
type Status struct {
	Time       *time.Time `json:"time,omitempty"`
	Running    bool       `json:"running"`
	SquareWave string     `json:"square_wave"`
	Error      string     `json:"error,omitempty"`
}

// Dial connects to the broker.
func Dial(o Options) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetConnectTimeout(o.Timeout).
		SetAutoReconnect(true)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("rtcpub: connecting to %s: timed out", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("rtcpub: connecting to %s: %w", o.Broker, err)
	}
	return client, nil
}

type Publisher struct {
	clock  Clock
	client Client
	opts   Options
	log    *zap.Logger
}

func New(clock Clock, client Client, opts Options, log *zap.Logger) *Publisher {
	return &Publisher{
		clock:  clock,
		client: client,
		opts:   opts,
		log:    log,
	}
}

// Read collects the current status. Read errors end up in Status.Error; the first one
// wins.
func (p *Publisher) Read() Status {
	var s Status
	fail := func(err error) {
		if err != nil && s.Error == "" {
			s.Error = err.Error()
		}
	}

	var now time.Time
	if err := p.clock.NowTime(&now); err != nil {
		fail(err)
	} else {
		s.Time = &now
	}
	fail(p.clock.Running(&s.Running))
	var mode ds1307.SquareWave
	if err := p.clock.SquareWave(&mode); err != nil {
		fail(err)
	} else {
		s.SquareWave = mode.String()
	}
	return s
}

// PublishOnce reads the clock and publishes one status message.
func (p *Publisher) PublishOnce() error {
	s := p.Read()
	if s.Error != "" {
		p.log.Warn("reading clock", zap.String("error", s.Error))
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retain, payload)
	if p.opts.Timeout > 0 {
		if !token.WaitTimeout(p.opts.Timeout) {
			return ErrPublishTimeout
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("rtcpub: publishing to %s: %w", p.opts.Topic, err)
	}
	p.log.Debug("published", zap.String("topic", p.opts.Topic), zap.ByteString("payload", payload))
	return nil
}

// Run publishes immediately and then on every interval until ctx is done. Failed
// publishes are logged and retried on the next tick.
func (p *Publisher) Run(ctx context.Context) error {
	if p.opts.Interval <= 0 {
		return fmt.Errorf("rtcpub: interval must be positive, got %v", p.opts.Interval)
	}
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		if err := p.PublishOnce(); err != nil {
			p.log.Error("publish failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
