// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/tmtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) tmtc.Record {
	return tmtc.Record{Topic: fmt.Sprintf("eps.field%d", i), Payload: []byte{byte(i)}}
}

type fakeConn struct {
	mu        sync.Mutex
	published []tmtc.Record
	failAfter int // fail the publish after this many successes, -1 never
	closed    bool
}

func (c *fakeConn) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter >= 0 && len(c.published) >= c.failAfter {
		c.failAfter = -1
		return errors.New("broken pipe")
	}
	c.published = append(c.published, tmtc.Record{Topic: topic, Payload: payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) records() []tmtc.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tmtc.Record, len(c.published))
	copy(out, c.published)
	return out
}

// fakeDialer fails the first `failures` dials and then hands out conns in order
type fakeDialer struct {
	mu        sync.Mutex
	failures  int
	conns     []*fakeConn
	dials     int
	queueLens []int
	channel   *Channel
}

func (d *fakeDialer) Address() string { return "fake://bus" }

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.channel != nil {
		d.queueLens = append(d.queueLens, d.channel.Len())
	}
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more connections")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

// instantAfter records requested delays and fires immediately
type instantAfter struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (a *instantAfter) After(d time.Duration) <-chan time.Time {
	a.mu.Lock()
	a.delays = append(a.delays, d)
	a.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (a *instantAfter) recorded() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.delays...)
}

// ============================================================
// Channel
// ============================================================

func TestChannelDropsWhenFull(t *testing.T) {
	rec := event.NewRecorder()
	ch := NewChannel(2, rec)

	assert.Equal(t, Enqueued, ch.Send(record(1)))
	assert.Equal(t, Enqueued, ch.Send(record(2)))

	done := make(chan SendResult)
	go func() { done <- ch.Send(record(3)) }()
	select {
	case res := <-done:
		assert.Equal(t, Dropped, res)
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full channel")
	}

	assert.Equal(t, uint64(1), ch.Dropped())
	assert.Equal(t, 2, ch.Len())
	assert.Equal(t, 2, ch.Cap())
	require.Len(t, rec.Filter(event.RecordDropped), 1)
	assert.Equal(t, "eps.field3", rec.Filter(event.RecordDropped)[0].Topic)
	assert.Equal(t, 2, rec.Count(event.RecordQueued))

	ch.Send(record(4))
	assert.Equal(t, uint64(2), ch.Dropped())
}

func TestChannelFIFO(t *testing.T) {
	ch := NewChannel(10, nil)
	for i := 0; i < 10; i++ {
		require.Equal(t, Enqueued, ch.Send(record(i)))
	}
	for i := 0; i < 10; i++ {
		got, ok := ch.Receive(context.Background())
		require.True(t, ok)
		assert.Equal(t, record(i), got)
	}
}

func TestChannelCloseDrains(t *testing.T) {
	ch := NewChannel(4, nil)
	ch.Send(record(1))
	ch.Send(record(2))
	ch.Close()
	ch.Close()

	assert.False(t, ch.Drained())
	assert.Equal(t, Closed, ch.Send(record(3)))

	for i := 1; i <= 2; i++ {
		got, ok := ch.Receive(context.Background())
		require.True(t, ok)
		assert.Equal(t, record(i), got)
	}
	_, ok := ch.Receive(context.Background())
	assert.False(t, ok)
	assert.True(t, ch.Drained())
	assert.Zero(t, ch.Dropped())
}

func TestChannelReceiveHonoursContext(t *testing.T) {
	ch := NewChannel(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := ch.Receive(ctx)
	assert.False(t, ok)
}

func TestChannelDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewChannel(0, nil).Cap())
}

// ============================================================
// Publisher
// ============================================================

func TestPublisherRetriesWithFixedDelay(t *testing.T) {
	ch := NewChannel(4, nil)
	require.Equal(t, Enqueued, ch.Send(record(1)))
	ch.Close()

	conn := &fakeConn{failAfter: -1}
	dialer := &fakeDialer{failures: 2, conns: []*fakeConn{conn}, channel: ch}
	after := &instantAfter{}
	rec := event.NewRecorder()

	p := NewPublisher(dialer, ch, PublisherOptions{
		ReconnectDelay: 3 * time.Second,
		Reporter:       rec,
		After:          after.After,
	})
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 3, dialer.dials)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, after.recorded())
	// Nothing was taken from the channel before the connection came up
	assert.Equal(t, []int{1, 1, 1}, dialer.queueLens)
	assert.Equal(t, []tmtc.Record{record(1)}, conn.records())
	assert.True(t, conn.closed)

	failed := rec.Filter(event.BusConnectFailed)
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].Attempt)
	assert.Equal(t, 2, failed[1].Attempt)
	assert.Equal(t, "fake://bus", failed[0].Source)
	assert.Equal(t, 1, rec.Count(event.BusConnected))
	assert.Equal(t, Disconnected, p.State())
}

func TestPublisherReconnectsAfterPublishFailure(t *testing.T) {
	ch := NewChannel(4, nil)
	for i := 1; i <= 3; i++ {
		ch.Send(record(i))
	}
	ch.Close()

	first := &fakeConn{failAfter: 1}
	second := &fakeConn{failAfter: -1}
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}
	rec := event.NewRecorder()

	p := NewPublisher(dialer, ch, PublisherOptions{Reporter: rec, After: (&instantAfter{}).After})
	require.NoError(t, p.Run(context.Background()))

	// record 2 was lost with the first connection
	assert.Equal(t, []tmtc.Record{record(1)}, first.records())
	assert.Equal(t, []tmtc.Record{record(3)}, second.records())
	assert.True(t, first.closed)

	failed := rec.Filter(event.BusPublishFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "eps.field2", failed[0].Topic)
	assert.Equal(t, 2, rec.Count(event.BusConnected))
}

func TestPublisherStopsOnCancel(t *testing.T) {
	ch := NewChannel(4, nil)
	conn := &fakeConn{failAfter: -1}
	p := NewPublisher(&fakeDialer{conns: []*fakeConn{conn}}, ch, PublisherOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.State() == Connected }, time.Second, time.Millisecond)
	ch.Send(record(7))
	require.Eventually(t, func() bool { return len(conn.records()) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
	assert.Equal(t, Disconnected, p.State())
}

func TestPublisherStopsWhileWaitingToReconnect(t *testing.T) {
	ch := NewChannel(1, nil)
	dialer := &fakeDialer{failures: 1000}
	never := func(time.Duration) <-chan time.Time { return nil }
	p := NewPublisher(dialer, ch, PublisherOptions{After: never})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return dialer.dials == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

func TestPublisherReturnsWhenDrainedBeforeConnecting(t *testing.T) {
	ch := NewChannel(1, nil)
	ch.Close()
	dialer := &fakeDialer{failures: 1000}
	p := NewPublisher(dialer, ch, PublisherOptions{})

	require.NoError(t, p.Run(context.Background()))
	assert.Zero(t, dialer.dials)
}

func TestMQTTTopic(t *testing.T) {
	tests := []struct {
		prefix, topic, want string
	}{
		{"", "eps.bat1_voltage", "eps/bat1_voltage"},
		{"groundstation", "eps.bat1_voltage", "groundstation/eps/bat1_voltage"},
		{"/sat/", "groundstation.lst.rssi", "sat/groundstation/lst/rssi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mqttTopic(tt.prefix, tt.topic))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "dropped", Dropped.String())
}
