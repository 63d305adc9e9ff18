// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tmtc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// FieldType is the wire type of a beacon field
type FieldType int

// Field wire types, all little-endian
const (
	U8 FieldType = iota
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
)

// Size returns the encoded size in bytes
func (t FieldType) Size() int {
	switch t {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	}
	return 0
}

func (t FieldType) String() string {
	switch t {
	case U8:
		return "u8"
	case I8:
		return "i8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return "unknown"
}

// Field describes one beacon field. Count > 1 makes it a fixed-size array.
type Field struct {
	Name  string
	Type  FieldType
	Count int
}

func (f Field) count() int {
	if f.Count < 1 {
		return 1
	}
	return f.Count
}

// Size returns the encoded size of the field in bytes
func (f Field) Size() int {
	return f.Type.Size() * f.count()
}

// Layout describes a beacon: [id][fields...][crc16 big-endian]
type Layout struct {
	Name   string
	ID     uint8
	Fields []Field
}

// Size returns the full beacon size including ID byte and checksum
func (l Layout) Size() int {
	n := 1 + 2
	for _, f := range l.Fields {
		n += f.Size()
	}
	return n
}

// Topic returns the bus topic of a field
func (l Layout) Topic(field string) string {
	return l.Name + "." + field
}

// Encode builds a beacon from field values; missing fields encode as zero.
// Array fields take a []interface{} of at most Count elements.
func (l Layout) Encode(values map[string]interface{}) ([]byte, error) {
	data := make([]byte, 1, l.Size())
	data[0] = l.ID
	for _, f := range l.Fields {
		v := values[f.Name]
		if f.count() == 1 {
			b, err := encodeValue(f.Type, v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			data = append(data, b...)
			continue
		}
		items, _ := v.([]interface{})
		if len(items) > f.count() {
			return nil, fmt.Errorf("field %s: %d elements (max %d)", f.Name, len(items), f.count())
		}
		for i := 0; i < f.count(); i++ {
			var item interface{}
			if i < len(items) {
				item = items[i]
			}
			b, err := encodeValue(f.Type, item)
			if err != nil {
				return nil, fmt.Errorf("field %s[%d]: %w", f.Name, i, err)
			}
			data = append(data, b...)
		}
	}
	crc := Checksum(data)
	return append(data, byte(crc>>8), byte(crc&0xFF)), nil
}

// LayoutBeacon is a Beacon driven by a Layout
type LayoutBeacon struct {
	layout    Layout
	values    []interface{}
	decoded   bool
	timestamp time.Time
	now       func() time.Time
}

// NewLayoutBeacon creates a decoder for the given layout
func NewLayoutBeacon(l Layout) *LayoutBeacon {
	return &LayoutBeacon{
		layout: l,
		values: make([]interface{}, len(l.Fields)),
		now:    time.Now,
	}
}

// Layout returns the beacon layout
func (b *LayoutBeacon) Layout() Layout {
	return b.layout
}

func (b *LayoutBeacon) Name() string {
	return b.layout.Name
}

func (b *LayoutBeacon) ID() uint8 {
	return b.layout.ID
}

func (b *LayoutBeacon) MinLength() int {
	return b.layout.Size()
}

// Decoded reports whether at least one beacon has been decoded
func (b *LayoutBeacon) Decoded() bool {
	return b.decoded
}

// Timestamp returns the time of the last successful decode
func (b *LayoutBeacon) Timestamp() time.Time {
	return b.timestamp
}

func (b *LayoutBeacon) Decode(data []byte, checksum ChecksumFunc) error {
	n := b.MinLength()
	if len(data) == 0 {
		return &TruncatedError{Need: n}
	}
	// Frames for other beacons are never an anomaly, whatever their length.
	if data[0] != b.layout.ID {
		return ErrWrongID
	}
	if len(data) < n {
		return &TruncatedError{Need: n, Got: len(data)}
	}

	received := binary.BigEndian.Uint16(data[n-2 : n])
	if calculated := checksum(data[:n-2]); calculated != received {
		return &ChecksumError{Expected: calculated, Received: received}
	}

	offset := 1
	for i, f := range b.layout.Fields {
		size := f.Type.Size()
		if f.count() == 1 {
			b.values[i] = decodeValue(f.Type, data[offset:offset+size])
			offset += size
			continue
		}
		items := make([]interface{}, f.count())
		for j := range items {
			items[j] = decodeValue(f.Type, data[offset:offset+size])
			offset += size
		}
		b.values[i] = items
	}

	b.timestamp = b.now()
	b.decoded = true
	return nil
}

func (b *LayoutBeacon) Value(field string) (interface{}, bool) {
	if !b.decoded {
		return nil, false
	}
	for i, f := range b.layout.Fields {
		if f.Name == field {
			return b.values[i], true
		}
	}
	return nil, false
}

func (b *LayoutBeacon) Serialize(s Serializer) ([]Record, error) {
	if !b.decoded {
		return nil, nil
	}

	ts := uint64(b.timestamp.UnixMilli())
	records := make([]Record, 0, len(b.layout.Fields))
	var errs []error
	for i, f := range b.layout.Fields {
		topic := b.layout.Topic(f.Name)
		payload, err := s.Serialize(Value{Timestamp: ts, Value: b.values[i]})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		records = append(records, Record{Topic: topic, Payload: payload})
	}
	return records, errors.Join(errs...)
}

func decodeValue(t FieldType, b []byte) interface{} {
	switch t {
	case U8:
		return b[0]
	case I8:
		return int8(b[0])
	case U16:
		return binary.LittleEndian.Uint16(b)
	case I16:
		return int16(binary.LittleEndian.Uint16(b))
	case U32:
		return binary.LittleEndian.Uint32(b)
	case I32:
		return int32(binary.LittleEndian.Uint32(b))
	case U64:
		return binary.LittleEndian.Uint64(b)
	case I64:
		return int64(binary.LittleEndian.Uint64(b))
	case F32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return nil
}

func encodeValue(t FieldType, v interface{}) ([]byte, error) {
	b := make([]byte, t.Size())
	if t == F32 || t == F64 {
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("expected number for %s, got %T", t, v)
		}
		if t == F32 {
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint64(b, math.Float64bits(f))
		}
		return b, nil
	}

	n, ok := toInt64(v)
	if !ok {
		return nil, fmt.Errorf("expected integer for %s, got %T", t, v)
	}
	switch t.Size() {
	case 1:
		b[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(n))
	}
	return b, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
