// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"context"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/relay"
	"github.com/southspace/lstrelay/pkg/tmtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSerializer(t *testing.T) tmtc.Serializer {
	t.Helper()
	s, err := tmtc.NewCBORSerializer()
	require.NoError(t, err)
	return s
}

func builtinSlots(t *testing.T, names ...string) []Slot {
	t.Helper()
	if len(names) == 0 {
		names = tmtc.Names()
	}
	slots, err := NewSlots(names)
	require.NoError(t, err)
	return slots
}

func layoutOf(t *testing.T, name string) tmtc.Layout {
	t.Helper()
	reg, ok := tmtc.Lookup(name)
	require.True(t, ok, name)
	return reg.Layout
}

// longestBeacon returns the largest MinLength among the slots
func longestBeacon(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if l := s.Beacon.MinLength(); l > n {
			n = l
		}
	}
	return n
}

// padded extends a frame with zero bytes the way the radio pads relays
func padded(frame []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, frame)
	return out
}

func lstFrame(t *testing.T) []byte {
	t.Helper()
	frame, err := layoutOf(t, "lst").Encode(map[string]interface{}{
		"uptime":       uint32(1234),
		"rssi":         int8(-80),
		"lqi":          uint8(50),
		"packets_sent": uint32(77),
		"packets_good": uint32(70),
	})
	require.NoError(t, err)
	return frame
}

func epsFrame(t *testing.T) []byte {
	t.Helper()
	frame, err := layoutOf(t, "eps").Encode(map[string]interface{}{
		"bat1_voltage": uint16(3700),
		"bat2_voltage": uint16(3650),
		"state":        uint8(2),
	})
	require.NoError(t, err)
	return frame
}

// countingBeacon counts decode attempts
type countingBeacon struct {
	tmtc.Beacon
	calls int
	errs  []error
}

func (b *countingBeacon) Decode(data []byte, checksum tmtc.ChecksumFunc) error {
	b.calls++
	err := b.Beacon.Decode(data, checksum)
	b.errs = append(b.errs, err)
	return err
}

// sinkFunc adapts a function to a RecordSink
type sinkFunc func(rec tmtc.Record) relay.SendResult

func (f sinkFunc) Send(rec tmtc.Record) relay.SendResult {
	return f(rec)
}

type failingSerializer struct{}

func (failingSerializer) Serialize(v interface{}) ([]byte, error) {
	return nil, errors.New("encoder broken")
}

// selectiveSerializer fails for values of one Go type
type selectiveSerializer struct {
	inner tmtc.Serializer
}

func (s selectiveSerializer) Serialize(v interface{}) ([]byte, error) {
	if val, ok := v.(tmtc.Value); ok {
		if _, isU8 := val.Value.(uint8); isU8 {
			return nil, errors.New("u8 not supported")
		}
	}
	return s.inner.Serialize(v)
}

func anomalies(rec *event.Recorder) []event.Event {
	return rec.Filter(event.BeaconBadChecksum, event.BeaconTruncated, event.BeaconDecodeFailed, event.SerializeFailed)
}

func TestDispatchUnknownFormat(t *testing.T) {
	slots := builtinSlots(t)
	rec := event.NewRecorder()
	ch := relay.NewChannel(100, nil)
	d := NewDispatcher(slots, newSerializer(t), ch, rec)

	frame := padded([]byte{0x7F, 1, 2, 3}, longestBeacon(slots))
	result := d.Dispatch(frame)

	assert.Empty(t, result.Records)
	assert.Empty(t, anomalies(rec))
	assert.Zero(t, rec.Count(event.BeaconDecoded))
	assert.Zero(t, ch.Len())
	require.Len(t, result.Attempts, len(slots))
	for _, a := range result.Attempts {
		assert.ErrorIs(t, a.Err, tmtc.ErrWrongID, a.Beacon)
	}
}

func TestDispatchShortUnknownFormat(t *testing.T) {
	slots := builtinSlots(t)
	rec := event.NewRecorder()
	d := NewDispatcher(slots, newSerializer(t), nil, rec)

	for n := 1; n <= longestBeacon(slots); n++ {
		frame := append([]byte{0x7F}, make([]byte, n-1)...)
		result := d.Dispatch(frame)

		assert.Empty(t, result.Records, "len=%d", n)
		for _, a := range result.Attempts {
			assert.ErrorIs(t, a.Err, tmtc.ErrWrongID, "len=%d %s", n, a.Beacon)
		}
	}
	assert.Empty(t, anomalies(rec))
}

func TestDispatchUnpaddedFrameOnlyDecodesItsBeacon(t *testing.T) {
	slots := builtinSlots(t)
	rec := event.NewRecorder()
	stats := NewStatistics()
	ch := relay.NewChannel(100, nil)
	d := NewDispatcher(slots, newSerializer(t), ch, event.Multi{rec, stats})

	frame := epsFrame(t)
	require.Less(t, len(frame), longestBeacon(slots))
	result := d.Dispatch(frame)

	decoded := rec.Filter(event.BeaconDecoded)
	require.Len(t, decoded, 1)
	assert.Equal(t, "eps", decoded[0].Source)
	assert.Zero(t, rec.Count(event.BeaconTruncated))
	assert.Empty(t, anomalies(rec))
	assert.NotEmpty(t, result.Records)
	assert.Equal(t, len(result.Records), ch.Len())

	c := stats.Snapshot()
	assert.Zero(t, c.Errors())
	assert.Equal(t, uint64(1), c.BeaconsDecoded)
}

func TestDispatchBadChecksum(t *testing.T) {
	slots := builtinSlots(t)
	rec := event.NewRecorder()
	ch := relay.NewChannel(100, nil)
	d := NewDispatcher(slots, newSerializer(t), ch, rec)

	frame := epsFrame(t)
	frame[len(frame)-1] ^= 0xFF
	result := d.Dispatch(padded(frame, longestBeacon(slots)))

	bad := rec.Filter(event.BeaconBadChecksum)
	require.Len(t, bad, 1)
	assert.Equal(t, "eps", bad[0].Source)
	assert.ErrorIs(t, bad[0].Err, tmtc.ErrBadCRC)
	var crcErr *tmtc.ChecksumError
	assert.ErrorAs(t, bad[0].Err, &crcErr)

	assert.Len(t, anomalies(rec), 1)
	assert.Empty(t, result.Records)
	assert.Zero(t, ch.Len())
}

func TestDispatchTruncatedNeverPanics(t *testing.T) {
	for _, name := range tmtc.Names() {
		t.Run(name, func(t *testing.T) {
			slots := builtinSlots(t, name)
			need := slots[0].Beacon.MinLength()
			full := append([]byte{slots[0].Beacon.ID()}, make([]byte, need)...)

			for n := 0; n < need; n++ {
				rec := event.NewRecorder()
				d := NewDispatcher(slots, newSerializer(t), nil, rec)
				result := d.Dispatch(full[:n])

				truncated := rec.Filter(event.BeaconTruncated)
				require.Len(t, truncated, 1, "len=%d", n)
				assert.Equal(t, name, truncated[0].Source)
				assert.Len(t, anomalies(rec), 1, "len=%d", n)
				assert.Empty(t, result.Records)
			}
		})
	}
}

func TestDispatchEndToEnd(t *testing.T) {
	s := newSerializer(t)
	a := &countingBeacon{Beacon: tmtc.NewLayoutBeacon(layoutOf(t, "lst"))}
	b := &countingBeacon{Beacon: tmtc.NewLayoutBeacon(layoutOf(t, "eps"))}
	ch := relay.NewChannel(relay.DefaultCapacity, nil)
	rec := event.NewRecorder()
	d := NewDispatcher([]Slot{{Beacon: a, LogFields: []string{"packets_sent"}}, {Beacon: b}}, s, ch, rec)

	result := d.Dispatch(lstFrame(t))

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.NoError(t, a.errs[0])
	assert.ErrorIs(t, b.errs[0], tmtc.ErrWrongID)

	n := len(layoutOf(t, "lst").Fields)
	require.Len(t, result.Records, n)
	assert.Equal(t, n, ch.Len())
	assert.Equal(t, []Attempt{
		{Beacon: "lst", Records: n},
		{Beacon: "eps", Err: tmtc.ErrWrongID},
	}, result.Attempts)

	ch.Close()
	for _, want := range result.Records {
		got, ok := ch.Receive(context.Background())
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	decoded := rec.Filter(event.BeaconDecoded)
	require.Len(t, decoded, 1)
	assert.Equal(t, "lst", decoded[0].Source)
	assert.Equal(t, uint32(77), decoded[0].Fields["packets_sent"])
	assert.Empty(t, anomalies(rec))
}

func TestDispatchRecordPayload(t *testing.T) {
	d := NewDispatcher(builtinSlots(t, "eps"), newSerializer(t), nil, nil)
	result := d.Dispatch(epsFrame(t))
	require.NotEmpty(t, result.Records)

	first := result.Records[0]
	assert.Equal(t, "eps.bat1_voltage", first.Topic)

	var v map[string]interface{}
	require.NoError(t, cbor.Unmarshal(first.Payload, &v))
	assert.Equal(t, uint64(3700), v["value"])
	assert.NotZero(t, v["timestamp"])
}

func TestDispatchSinkOrder(t *testing.T) {
	var topics []string
	sink := sinkFunc(func(rec tmtc.Record) relay.SendResult {
		topics = append(topics, rec.Topic)
		return relay.Enqueued
	})
	slots := []Slot{
		{Beacon: tmtc.NewLayoutBeacon(layoutOf(t, "eps"))},
		{Beacon: tmtc.NewLayoutBeacon(layoutOf(t, "eps"))},
	}
	d := NewDispatcher(slots, newSerializer(t), sink, nil)
	d.Dispatch(epsFrame(t))

	fields := layoutOf(t, "eps").Fields
	require.Len(t, topics, 2*len(fields))
	for i, f := range fields {
		assert.Equal(t, "eps."+f.Name, topics[i])
		assert.Equal(t, "eps."+f.Name, topics[len(fields)+i])
	}
}

func TestDispatchSerializeFailureDropsOnlyFailedRecords(t *testing.T) {
	rec := event.NewRecorder()
	ch := relay.NewChannel(100, nil)
	d := NewDispatcher(builtinSlots(t, "eps"), selectiveSerializer{inner: newSerializer(t)}, ch, rec)

	result := d.Dispatch(epsFrame(t))

	// "state" is the only u8 field
	fields := layoutOf(t, "eps").Fields
	assert.Len(t, result.Records, len(fields)-1)
	assert.Equal(t, len(fields)-1, ch.Len())
	assert.Equal(t, 1, rec.Count(event.SerializeFailed))
	assert.Equal(t, 1, rec.Count(event.BeaconDecoded))
}

func TestDispatchSerializerBroken(t *testing.T) {
	rec := event.NewRecorder()
	d := NewDispatcher(builtinSlots(t, "eps"), failingSerializer{}, nil, rec)
	result := d.Dispatch(epsFrame(t))

	assert.Empty(t, result.Records)
	assert.Equal(t, 1, rec.Count(event.SerializeFailed))
	assert.NoError(t, result.Attempts[0].Err)
}

func TestDispatchDropsWhenChannelFull(t *testing.T) {
	rec := event.NewRecorder()
	ch := relay.NewChannel(3, rec)
	d := NewDispatcher(builtinSlots(t, "lst"), newSerializer(t), ch, rec)

	result := d.Dispatch(lstFrame(t))

	assert.Len(t, result.Records, 7)
	assert.Equal(t, 3, ch.Len())
	assert.Equal(t, uint64(4), ch.Dropped())
	assert.Equal(t, 4, rec.Count(event.RecordDropped))
}

func TestNewSlots(t *testing.T) {
	slots, err := NewSlots([]string{"eps", "lst"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "eps", slots[0].Beacon.Name())
	assert.Equal(t, []string{"bat1_voltage"}, slots[0].LogFields)
	assert.Equal(t, "lst", slots[1].Beacon.Name())

	_, err = NewSlots([]string{"eps", "nope"})
	assert.Error(t, err)
}
