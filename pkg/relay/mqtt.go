// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrTimeout is returned when the broker does not answer in time
var ErrTimeout = errors.New("bus operation timed out")

const defaultMQTTTimeout = 10 * time.Second

var newMQTTClient = mqtt.NewClient

// MQTTDialer connects to an MQTT broker. Record topics map to MQTT topics
// by replacing '.' with '/' under TopicPrefix.
type MQTTDialer struct {
	URL                string
	ClientID           string
	User               string
	Password           string
	TopicPrefix        string
	QoS                byte
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (d *MQTTDialer) Address() string {
	return d.URL
}

func (d *MQTTDialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return defaultMQTTTimeout
	}
	return d.Timeout
}

func (d *MQTTDialer) Dial(ctx context.Context) (Conn, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(d.URL).
		SetClientID(d.ClientID).
		SetUsername(d.User).
		SetPassword(d.Password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(d.timeout()).
		SetWriteTimeout(d.timeout())
	if d.InsecureSkipVerify {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	client := newMQTTClient(opts)
	if err := tokenWait(ctx, client.Connect(), d.timeout()); err != nil {
		// Abort the attempt still running in the background.
		client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to %s: %w", d.URL, err)
	}
	return &mqttConn{client: client, dialer: d}, nil
}

type mqttConn struct {
	client mqtt.Client
	dialer *MQTTDialer
}

func (c *mqttConn) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrConnectionClosed
	}
	t := c.client.Publish(mqttTopic(c.dialer.TopicPrefix, topic), c.dialer.QoS, false, payload)
	return tokenWait(ctx, t, c.dialer.timeout())
}

func (c *mqttConn) Close() error {
	c.client.Disconnect(250)
	return nil
}

func mqttTopic(prefix, topic string) string {
	topic = strings.ReplaceAll(topic, ".", "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

func tokenWait(ctx context.Context, t mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
