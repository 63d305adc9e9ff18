// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tmtc decodes telemetry beacons relayed by the ground station radio.
//
// A beacon is a fixed-size binary record identified by a one byte ID and
// protected by a CRC-16-CCITT checksum. Decoders are stateful: a successful
// decode replaces the decoder's current field values, which are then
// serialized into one Record per field.
package tmtc

import (
	"errors"
	"fmt"
)

// Decode outcomes other than success
var (
	// ErrWrongID means the frame carries another beacon; not an anomaly
	ErrWrongID = errors.New("wrong beacon id")
	// ErrBadCRC means the beacon ID matched but the checksum did not
	ErrBadCRC = errors.New("bad crc")
	// ErrTruncated means the frame is shorter than the beacon
	ErrTruncated = errors.New("not enough bytes")
)

// ChecksumError reports a checksum mismatch; it matches ErrBadCRC
type ChecksumError struct {
	Expected uint16
	Received uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", e.Expected, e.Received)
}

func (e *ChecksumError) Unwrap() error {
	return ErrBadCRC
}

// TruncatedError reports a frame shorter than required; it matches ErrTruncated
type TruncatedError struct {
	Need int
	Got  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("not enough bytes: need %d, got %d", e.Need, e.Got)
}

func (e *TruncatedError) Unwrap() error {
	return ErrTruncated
}

// Beacon is a stateful decoder for one beacon format
type Beacon interface {
	// Name is the beacon name, also the topic prefix of its records
	Name() string
	// ID is the format identifier carried in the first byte
	ID() uint8
	// MinLength is the number of bytes the beacon occupies, checksum included
	MinLength() int
	// Decode validates data and, on success, replaces the current values.
	// Returns nil, ErrWrongID, ErrBadCRC or ErrTruncated (possibly wrapped).
	Decode(data []byte, checksum ChecksumFunc) error
	// Value returns the current value of a field
	Value(field string) (interface{}, bool)
	// Serialize encodes the current values into records. Records that could
	// be encoded are returned even when some fields failed.
	Serialize(s Serializer) ([]Record, error)
}
