// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
)

// Counters is a point-in-time copy of the pipeline statistics
type Counters struct {
	StartTime time.Time

	Frames          uint64
	ReceiveErrors   uint64
	Acks            uint64
	Nacks           uint64
	UnknownMessages uint64
	LocalTelemetry  uint64

	BeaconsDecoded  uint64
	CRCErrors       uint64
	Truncated       uint64
	DecodeErrors    uint64
	SerializeErrors uint64
	PerBeacon       map[string]uint64

	RecordsQueued    uint64
	RecordsDropped   uint64
	RecordsPublished uint64
	PublishErrors    uint64
	ConnectFailures  uint64
	BusConnects      uint64

	PollsSent    uint64
	PollFailures uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Errors returns the number of anomalies counted
func (c Counters) Errors() uint64 {
	return c.ReceiveErrors + c.CRCErrors + c.Truncated + c.DecodeErrors + c.SerializeErrors + c.PublishErrors
}

// Statistics counts pipeline events; it is an event.Reporter
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now(), PerBeacon: map[string]uint64{}}}
}

func (s *Statistics) Report(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.c
	switch e.Kind {
	case event.FrameReceived:
		c.Frames++
	case event.ReceiveFailed:
		c.ReceiveErrors++
	case event.Ack:
		c.Acks++
	case event.Nack:
		c.Nacks++
	case event.UnknownMessage:
		c.UnknownMessages++
	case event.LocalTelemetry:
		c.LocalTelemetry++
	case event.BeaconDecoded:
		c.BeaconsDecoded++
		c.PerBeacon[e.Source]++
	case event.BeaconBadChecksum:
		c.CRCErrors++
	case event.BeaconTruncated:
		c.Truncated++
	case event.BeaconDecodeFailed:
		c.DecodeErrors++
	case event.SerializeFailed:
		c.SerializeErrors++
	case event.RecordQueued:
		c.RecordsQueued++
	case event.RecordDropped:
		c.RecordsDropped++
	case event.BusPublished:
		c.RecordsPublished++
	case event.BusPublishFailed:
		c.PublishErrors++
	case event.BusConnectFailed:
		c.ConnectFailures++
	case event.BusConnected:
		c.BusConnects++
	case event.PollSent:
		c.PollsSent++
	case event.PollFailed:
		c.PollFailures++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.FrameRate = float64(s.c.Frames) / elapsed
		s.c.ErrorRate = float64(s.c.Errors()) / elapsed
	}
}

// Snapshot returns a copy of the current counters with fresh rates
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	c := s.c
	c.PerBeacon = make(map[string]uint64, len(s.c.PerBeacon))
	for k, v := range s.c.PerBeacon {
		c.PerBeacon[k] = v
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()
	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames:          %8d\n", c.Frames)
	result += fmt.Sprintf("Beacons Decoded: %8d\n", c.BeaconsDecoded)

	names := make([]string, 0, len(c.PerBeacon))
	for name := range c.PerBeacon {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result += fmt.Sprintf("  %-24s %5d\n", name+":", c.PerBeacon[name])
	}

	if c.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", c.CRCErrors)
	}
	if c.Truncated > 0 {
		result += fmt.Sprintf("Truncated:       %8d\n", c.Truncated)
	}
	if c.ReceiveErrors > 0 {
		result += fmt.Sprintf("Receive Errors:  %8d\n", c.ReceiveErrors)
	}
	if c.DecodeErrors+c.SerializeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", c.DecodeErrors+c.SerializeErrors)
	}
	if c.Nacks > 0 || c.UnknownMessages > 0 {
		result += fmt.Sprintf("NACK / Unknown:  %8d / %d\n", c.Nacks, c.UnknownMessages)
	}

	result += fmt.Sprintf("Records Queued:  %8d\n", c.RecordsQueued)
	if c.RecordsDropped > 0 {
		result += fmt.Sprintf("Records Dropped: %8d\n", c.RecordsDropped)
	}
	result += fmt.Sprintf("Published:       %8d\n", c.RecordsPublished)
	if c.PublishErrors+c.ConnectFailures > 0 {
		result += fmt.Sprintf("Bus Errors:      %8d (connect %d)\n", c.PublishErrors+c.ConnectFailures, c.ConnectFailures)
	}
	result += fmt.Sprintf("Polls:           %8d (failed %d)\n", c.PollsSent+c.PollFailures, c.PollFailures)

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = Counters{StartTime: time.Now(), PerBeacon: map[string]uint64{}}
}
