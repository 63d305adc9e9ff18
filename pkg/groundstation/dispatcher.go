// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package groundstation runs the relay pipeline: it receives frames from the
// transceiver, dispatches relayed payloads to the beacon decoders, forwards
// the resulting records to the bus relay and polls the transceiver for its
// own telemetry.
package groundstation

import (
	"errors"
	"fmt"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/relay"
	"github.com/southspace/lstrelay/pkg/tmtc"
)

// RecordSink accepts records for relaying; *relay.Channel implements it
type RecordSink interface {
	Send(rec tmtc.Record) relay.SendResult
}

// Slot binds a decoder to the fields reported on each successful decode
type Slot struct {
	Beacon    tmtc.Beacon
	LogFields []string
}

// NewSlots builds decoders for the named built-in beacons, keeping dispatch order
func NewSlots(names []string) ([]Slot, error) {
	slots := make([]Slot, 0, len(names))
	for _, name := range names {
		reg, ok := tmtc.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown beacon %q", name)
		}
		slots = append(slots, Slot{
			Beacon:    tmtc.NewLayoutBeacon(reg.Layout),
			LogFields: reg.LogFields,
		})
	}
	return slots, nil
}

// Attempt is the outcome of offering a frame to one decoder
type Attempt struct {
	Beacon  string
	Err     error // nil, or matches tmtc.ErrWrongID, ErrBadCRC, ErrTruncated
	Records int
}

// DispatchResult describes one dispatched frame
type DispatchResult struct {
	Attempts []Attempt
	Records  []tmtc.Record
}

// Dispatcher offers every relayed frame to each decoder in order
type Dispatcher struct {
	slots      []Slot
	checksum   tmtc.ChecksumFunc
	serializer tmtc.Serializer
	sink       RecordSink
	reporter   event.Reporter
}

// NewDispatcher creates a dispatcher. A nil sink produces records without relaying them.
func NewDispatcher(slots []Slot, serializer tmtc.Serializer, sink RecordSink, reporter event.Reporter) *Dispatcher {
	if reporter == nil {
		reporter = event.Discard
	}
	return &Dispatcher{
		slots:      slots,
		checksum:   tmtc.Checksum,
		serializer: serializer,
		sink:       sink,
		reporter:   reporter,
	}
}

// Slots returns the decoder slots in dispatch order
func (d *Dispatcher) Slots() []Slot {
	return d.slots
}

// Dispatch decodes data with every decoder. A decoder's records are handed
// to the sink before the next decoder is tried.
func (d *Dispatcher) Dispatch(data []byte) DispatchResult {
	var result DispatchResult
	for _, slot := range d.slots {
		beacon := slot.Beacon
		attempt := Attempt{Beacon: beacon.Name()}
		attempt.Err = beacon.Decode(data, d.checksum)

		switch {
		case attempt.Err == nil:
			d.reportDecoded(slot)
			records := d.serialize(beacon)
			d.relay(records)
			attempt.Records = len(records)
			result.Records = append(result.Records, records...)

		case errors.Is(attempt.Err, tmtc.ErrWrongID):
			// Another beacon's frame

		case errors.Is(attempt.Err, tmtc.ErrBadCRC):
			d.report(event.BeaconBadChecksum, beacon.Name(), attempt.Err)

		case errors.Is(attempt.Err, tmtc.ErrTruncated):
			d.report(event.BeaconTruncated, beacon.Name(), attempt.Err)

		default:
			d.report(event.BeaconDecodeFailed, beacon.Name(), attempt.Err)
		}

		result.Attempts = append(result.Attempts, attempt)
	}
	return result
}

func (d *Dispatcher) serialize(beacon tmtc.Beacon) []tmtc.Record {
	records, err := beacon.Serialize(d.serializer)
	if err != nil {
		d.report(event.SerializeFailed, beacon.Name(), err)
	}
	return records
}

func (d *Dispatcher) relay(records []tmtc.Record) {
	if d.sink == nil {
		return
	}
	for _, rec := range records {
		d.sink.Send(rec)
	}
}

func (d *Dispatcher) reportDecoded(slot Slot) {
	fields := make(map[string]interface{}, len(slot.LogFields))
	for _, name := range slot.LogFields {
		if v, ok := slot.Beacon.Value(name); ok {
			fields[name] = v
		}
	}
	d.reporter.Report(event.Event{
		Time:   time.Now(),
		Kind:   event.BeaconDecoded,
		Source: slot.Beacon.Name(),
		Fields: fields,
	})
}

func (d *Dispatcher) report(kind event.Kind, source string, err error) {
	d.reporter.Report(event.Event{Time: time.Now(), Kind: kind, Source: source, Err: err})
}
