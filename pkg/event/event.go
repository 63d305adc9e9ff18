// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package event carries the notable things that happen in the relay pipeline
// from the component that observed them to whoever reports them.
package event

import (
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies what happened
type Kind int

// Event kinds
const (
	FrameReceived Kind = iota
	ReceiveFailed
	Ack
	Nack
	UnknownMessage
	BeaconDecoded
	BeaconBadChecksum
	BeaconTruncated
	BeaconDecodeFailed
	SerializeFailed
	RecordQueued
	RecordDropped
	LocalTelemetry
	BusConnecting
	BusConnected
	BusConnectFailed
	BusPublished
	BusPublishFailed
	PollSent
	PollFailed

	numKinds
)

type kindInfo struct {
	name    string
	message string
	level   zerolog.Level
}

var kinds = [numKinds]kindInfo{
	FrameReceived:      {"frame_received", "frame received", zerolog.TraceLevel},
	ReceiveFailed:      {"receive_failed", "failed to receive frame", zerolog.WarnLevel},
	Ack:                {"ack", "ACK received", zerolog.DebugLevel},
	Nack:               {"nack", "NACK received", zerolog.WarnLevel},
	UnknownMessage:     {"unknown_message", "unknown message received", zerolog.WarnLevel},
	BeaconDecoded:      {"beacon_decoded", "beacon decoded", zerolog.InfoLevel},
	BeaconBadChecksum:  {"beacon_bad_checksum", "beacon checksum mismatch", zerolog.WarnLevel},
	BeaconTruncated:    {"beacon_truncated", "beacon truncated", zerolog.WarnLevel},
	BeaconDecodeFailed: {"beacon_decode_failed", "beacon decode failed", zerolog.WarnLevel},
	SerializeFailed:    {"serialize_failed", "failed to serialize record", zerolog.ErrorLevel},
	RecordQueued:       {"record_queued", "record queued", zerolog.TraceLevel},
	RecordDropped:      {"record_dropped", "relay queue full, record dropped", zerolog.WarnLevel},
	LocalTelemetry:     {"local_telemetry", "transceiver telemetry", zerolog.InfoLevel},
	BusConnecting:      {"bus_connecting", "connecting to bus", zerolog.DebugLevel},
	BusConnected:       {"bus_connected", "connected to bus", zerolog.InfoLevel},
	BusConnectFailed:   {"bus_connect_failed", "failed to connect to bus", zerolog.ErrorLevel},
	BusPublished:       {"bus_published", "record published", zerolog.TraceLevel},
	BusPublishFailed:   {"bus_publish_failed", "failed to publish record", zerolog.ErrorLevel},
	PollSent:           {"poll_sent", "telemetry requested", zerolog.DebugLevel},
	PollFailed:         {"poll_failed", "failed to request telemetry", zerolog.WarnLevel},
}

func (k Kind) info() kindInfo {
	if k < 0 || k >= numKinds {
		return kindInfo{"unknown", "unknown event", zerolog.WarnLevel}
	}
	return kinds[k]
}

func (k Kind) String() string {
	return k.info().name
}

// Message returns a short human-readable description
func (k Kind) Message() string {
	return k.info().message
}

// Level returns the log level events of this kind are written at
func (k Kind) Level() zerolog.Level {
	return k.info().level
}

// Kinds returns every known kind in declaration order
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Event is one notable occurrence
type Event struct {
	Time    time.Time
	Kind    Kind
	Source  string // beacon name, bus address or message command
	Topic   string
	Attempt int
	Err     error
	Fields  map[string]interface{}
}

// Reporter receives events. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(e Event)
}

// Func adapts a function to a Reporter
type Func func(e Event)

func (f Func) Report(e Event) {
	f(e)
}

// Multi fans an event out to several reporters in order
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Discard drops every event
var Discard Reporter = Func(func(Event) {})
