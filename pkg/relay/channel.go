// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay moves serialized records from the ingest loop to the message
// bus. A bounded Channel separates the two sides so bus outages never stall
// frame ingestion; a Publisher drains it over a reconnecting bus connection.
package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/tmtc"
)

// DefaultCapacity is the relay queue size used when none is configured
const DefaultCapacity = 30

// SendResult is the outcome of Channel.Send
type SendResult int

// Send outcomes
const (
	Enqueued SendResult = iota
	Dropped
	Closed
)

func (r SendResult) String() string {
	switch r {
	case Enqueued:
		return "enqueued"
	case Dropped:
		return "dropped"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Channel is a bounded FIFO of records. Send never blocks: when the queue is
// full the newest record is dropped and counted.
type Channel struct {
	mu       sync.RWMutex
	records  chan tmtc.Record
	closed   bool
	dropped  atomic.Uint64
	reporter event.Reporter
}

// NewChannel creates a channel holding at most capacity records
func NewChannel(capacity int, reporter event.Reporter) *Channel {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if reporter == nil {
		reporter = event.Discard
	}
	return &Channel{
		records:  make(chan tmtc.Record, capacity),
		reporter: reporter,
	}
}

// Send enqueues rec without blocking
func (c *Channel) Send(rec tmtc.Record) SendResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return Closed
	}

	select {
	case c.records <- rec:
		c.reporter.Report(event.Event{Time: time.Now(), Kind: event.RecordQueued, Topic: rec.Topic})
		return Enqueued
	default:
		n := c.dropped.Add(1)
		c.reporter.Report(event.Event{
			Time:   time.Now(),
			Kind:   event.RecordDropped,
			Topic:  rec.Topic,
			Fields: map[string]interface{}{"dropped_total": n},
		})
		return Dropped
	}
}

// Receive blocks until a record is available. It returns false once the
// channel is closed and drained, or when ctx is done.
func (c *Channel) Receive(ctx context.Context) (tmtc.Record, bool) {
	select {
	case rec, ok := <-c.records:
		return rec, ok
	case <-ctx.Done():
		return tmtc.Record{}, false
	}
}

// Close stops accepting records. Records already queued stay receivable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.records)
	}
}

// Drained reports whether the channel is closed and empty
func (c *Channel) Drained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed && len(c.records) == 0
}

// Dropped returns the number of records dropped because the queue was full
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Len returns the number of queued records
func (c *Channel) Len() int {
	return len(c.records)
}

// Cap returns the queue capacity
func (c *Channel) Cap() int {
	return cap(c.records)
}
