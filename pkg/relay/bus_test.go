// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingToken never completes
type pendingToken struct {
	done chan struct{}
}

func (t *pendingToken) Wait() bool                       { <-t.done; return true }
func (t *pendingToken) WaitTimeout(d time.Duration) bool { return false }
func (t *pendingToken) Done() <-chan struct{}            { return t.done }
func (t *pendingToken) Error() error                     { return nil }

// stuckClient is an MQTT client whose connect attempt hangs
type stuckClient struct {
	mqtt.Client
	disconnects []uint
}

func (c *stuckClient) Connect() mqtt.Token {
	return &pendingToken{done: make(chan struct{})}
}

func (c *stuckClient) Disconnect(quiesce uint) {
	c.disconnects = append(c.disconnects, quiesce)
}

func withStuckMQTTClient(t *testing.T) *stuckClient {
	t.Helper()
	client := &stuckClient{}
	orig := newMQTTClient
	newMQTTClient = func(*mqtt.ClientOptions) mqtt.Client { return client }
	t.Cleanup(func() { newMQTTClient = orig })
	return client
}

func TestMQTTDialAbortsConnectOnTimeout(t *testing.T) {
	client := withStuckMQTTClient(t)
	d := &MQTTDialer{URL: "tcp://broker.invalid:1883", Timeout: 20 * time.Millisecond}

	conn, err := d.Dial(context.Background())
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []uint{0}, client.disconnects)
}

func TestMQTTDialAbortsConnectOnCancel(t *testing.T) {
	client := withStuckMQTTClient(t)
	d := &MQTTDialer{URL: "tcp://broker.invalid:1883", Timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint{0}, client.disconnects)
}

func TestBoundedTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, boundedTimeout(context.Background(), 5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	got := boundedTimeout(ctx, 5*time.Second)
	assert.LessOrEqual(t, got, 100*time.Millisecond)
	assert.Greater(t, got, time.Duration(0))
}

// fakeNATSServer speaks enough of the NATS protocol to complete the client
// handshake. After that it answers PINGs only when ack is set, and sends
// every PUB line it reads to pubs.
func fakeNATSServer(t *testing.T, ack bool) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	pubs := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		info := `INFO {"server_id":"fake","version":"2.10.0","proto":1,"max_payload":1048576,"headers":true}` + "\r\n"
		if _, err := conn.Write([]byte(info)); err != nil {
			return
		}

		r := bufio.NewReader(conn)
		handshake := true
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "PING":
				if handshake || ack {
					conn.Write([]byte("PONG\r\n"))
				}
				handshake = false
			case strings.HasPrefix(line, "PUB "):
				pubs <- line
				if _, err := r.ReadString('\n'); err != nil {
					return
				}
			}
		}
	}()
	return "nats://" + ln.Addr().String(), pubs
}

func TestNATSPublishFlushes(t *testing.T) {
	url, pubs := fakeNATSServer(t, true)
	d := &NATSDialer{URL: url, Timeout: time.Second}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Publish(context.Background(), "eps.state", []byte{0x02}))
	select {
	case line := <-pubs:
		assert.Equal(t, "PUB eps.state 1", line)
	case <-time.After(time.Second):
		t.Fatal("server never saw the record")
	}
}

func TestNATSPublishFailsWhenServerStopsAnswering(t *testing.T) {
	url, _ := fakeNATSServer(t, false)
	d := &NATSDialer{URL: url, Timeout: 100 * time.Millisecond}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Publish(context.Background(), "eps.state", []byte{0x02})
	assert.ErrorIs(t, err, nats.ErrTimeout)
}

func TestNATSPublishHonoursCancelledContext(t *testing.T) {
	url, _ := fakeNATSServer(t, true)
	d := &NATSDialer{URL: url, Timeout: time.Second}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, conn.Publish(ctx, "eps.state", []byte{0x02}), context.Canceled)
}
