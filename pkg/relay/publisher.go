// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
)

// DefaultReconnectDelay is the pause between failed connection attempts
const DefaultReconnectDelay = 3 * time.Second

// State of the bus connection
type State int32

// Connection states
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Conn is an established bus connection
type Conn interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Dialer opens bus connections
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	Address() string
}

// PublisherOptions tune a Publisher; zero values select defaults
type PublisherOptions struct {
	ReconnectDelay time.Duration
	Reporter       event.Reporter
	After          func(time.Duration) <-chan time.Time
}

// Publisher drains a Channel onto the bus, reconnecting forever.
// Delivery is at-most-once: a record whose publish fails is lost.
type Publisher struct {
	dialer   Dialer
	channel  *Channel
	delay    time.Duration
	reporter event.Reporter
	after    func(time.Duration) <-chan time.Time
	state    atomic.Int32
}

// NewPublisher creates a publisher reading from ch
func NewPublisher(d Dialer, ch *Channel, opts PublisherOptions) *Publisher {
	p := &Publisher{
		dialer:   d,
		channel:  ch,
		delay:    opts.ReconnectDelay,
		reporter: opts.Reporter,
		after:    opts.After,
	}
	if p.delay <= 0 {
		p.delay = DefaultReconnectDelay
	}
	if p.reporter == nil {
		p.reporter = event.Discard
	}
	if p.after == nil {
		p.after = time.After
	}
	return p
}

// State returns the current connection state
func (p *Publisher) State() State {
	return State(p.state.Load())
}

func (p *Publisher) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Publisher) report(kind event.Kind, e event.Event) {
	e.Time = time.Now()
	e.Kind = kind
	e.Source = p.dialer.Address()
	p.reporter.Report(e)
}

// Run publishes until the channel is closed and drained, returning nil, or
// until ctx is done, returning ctx.Err().
func (p *Publisher) Run(ctx context.Context) error {
	defer p.setState(Disconnected)

	attempt := 0
	for {
		if p.channel.Drained() {
			return nil
		}

		attempt++
		p.setState(Connecting)
		p.report(event.BusConnecting, event.Event{Attempt: attempt})

		conn, err := p.dialer.Dial(ctx)
		if err != nil {
			p.setState(Disconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.report(event.BusConnectFailed, event.Event{
				Attempt: attempt,
				Err:     err,
				Fields:  map[string]interface{}{"retry_in": p.delay.String()},
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.after(p.delay):
			}
			continue
		}

		attempt = 0
		p.setState(Connected)
		p.report(event.BusConnected, event.Event{})

		err = p.drain(ctx, conn)
		conn.Close()
		p.setState(Disconnected)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// drain publishes records until the channel ends or a publish fails
func (p *Publisher) drain(ctx context.Context, conn Conn) error {
	for {
		rec, ok := p.channel.Receive(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := conn.Publish(ctx, rec.Topic, rec.Payload); err != nil {
			p.report(event.BusPublishFailed, event.Event{Topic: rec.Topic, Err: err})
			return fmt.Errorf("failed to publish %s: %w", rec.Topic, err)
		}
		p.report(event.BusPublished, event.Event{Topic: rec.Topic})
	}
}
