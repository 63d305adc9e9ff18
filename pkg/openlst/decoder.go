// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Decoder implements the OpenLST UART frame decoder state machine
type Decoder struct {
	state   int
	length  int
	buffer  []byte
	skipped int
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateSync1,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset resets the decoder state to wait for start bytes
func (d *Decoder) Reset() {
	d.state = stateSync1
	d.length = 0
	d.buffer = d.buffer[:0]
}

// Skipped returns the number of bytes discarded outside of frames
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed message, or nil if the frame is incomplete
// Returns an error if the frame is malformed
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	switch d.state {
	case stateSync1:
		if b == StartByte1 {
			d.state = stateSync2
		} else {
			d.skipped++
		}
		return nil, nil

	case stateSync2:
		switch b {
		case StartByte2:
			d.state = stateLength
		case StartByte1:
			// Repeated first start byte, keep waiting for the second
			d.skipped++
		default:
			d.skipped += 2
			d.state = stateSync1
		}
		return nil, nil

	case stateLength:
		if int(b) < HeaderSize {
			d.Reset()
			return nil, &FrameError{Reason: fmt.Sprintf("invalid length: %d (min %d)", b, HeaderSize)}
		}
		d.length = int(b)
		d.buffer = d.buffer[:0]
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) < d.length {
			return nil, nil
		}
		msg, err := parseFrame(d.buffer)
		d.Reset()
		return msg, err

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// parseFrame builds a message from the bytes following the length byte
func parseFrame(body []byte) (*Message, error) {
	msg := &Message{
		HWID:      binary.LittleEndian.Uint16(body[0:2]),
		Seq:       binary.LittleEndian.Uint16(body[2:4]),
		System:    body[4],
		Command:   Command(body[5]),
		Timestamp: time.Now(),
	}
	msg.Kind = KindOf(msg.Command)

	if len(body) > HeaderSize {
		msg.Data = make([]byte, len(body)-HeaderSize)
		copy(msg.Data, body[HeaderSize:])
	}

	if msg.Kind == KindTelemetry {
		tm, err := ParseTelemetry(msg.Data)
		if err != nil {
			return nil, err
		}
		msg.Telemetry = tm
	}
	return msg, nil
}
