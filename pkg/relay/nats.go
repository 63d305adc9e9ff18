// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrConnectionClosed is returned when publishing on a connection the bus has dropped
var ErrConnectionClosed = errors.New("bus connection closed")

// NATSDialer connects to a NATS server. The client library's own
// reconnection is disabled; the Publisher owns reconnects.
type NATSDialer struct {
	URL                string
	User               string
	Password           string
	Name               string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (d *NATSDialer) Address() string {
	return d.URL
}

func (d *NATSDialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return nats.DefaultTimeout
	}
	return d.Timeout
}

// boundedTimeout shortens timeout to the context deadline, if any
func boundedTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	return timeout
}

func (d *NATSDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := boundedTimeout(ctx, d.timeout())
	opts := []nats.Option{
		nats.Name(d.Name),
		nats.NoReconnect(),
		nats.Timeout(timeout),
	}
	if d.User != "" {
		opts = append(opts, nats.UserInfo(d.User, d.Password))
	}
	if d.InsecureSkipVerify {
		opts = append(opts, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	nc, err := nats.Connect(d.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.URL, err)
	}
	return &natsConn{nc: nc, timeout: d.timeout()}, nil
}

// natsConn publishes with core NATS. Delivery is at-most-once: a record
// counts as sent once the server has acknowledged the flush that follows
// it, and nothing is redelivered after a connection loss.
type natsConn struct {
	nc      *nats.Conn
	timeout time.Duration
}

func (c *natsConn) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.nc.IsConnected() {
		return ErrConnectionClosed
	}
	if err := c.nc.Publish(topic, payload); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := boundedTimeout(ctx, c.timeout)
	if timeout <= 0 {
		return ErrTimeout
	}
	if err := c.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush %s: %w", topic, err)
	}
	return nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}
