// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"fmt"
	"io"
)

// Receiver reads frames from the receive half of a transport
type Receiver struct {
	r       io.Reader
	decoder *Decoder
	buf     []byte
	pending []byte
	readErr error
}

// NewReceiver creates a receiver reading from r
func NewReceiver(r io.Reader) *Receiver {
	return &Receiver{
		r:       r,
		decoder: NewDecoder(),
		buf:     make([]byte, 128),
	}
}

// Skipped returns the number of bytes discarded outside of frames
func (r *Receiver) Skipped() int {
	return r.decoder.Skipped()
}

// Receive blocks until the next frame is decoded.
// A *FrameError is transient and the next call resumes decoding. An error
// matching ErrTransportLost is permanent.
func (r *Receiver) Receive() (Message, error) {
	for {
		for len(r.pending) > 0 {
			b := r.pending[0]
			r.pending = r.pending[1:]

			msg, err := r.decoder.DecodeByte(b)
			if err != nil {
				return Message{}, err
			}
			if msg != nil {
				return *msg, nil
			}
		}

		if r.readErr != nil {
			return Message{}, r.readErr
		}

		n, err := r.r.Read(r.buf)
		if err != nil {
			// Bytes returned together with the error are still decoded first
			r.readErr = fmt.Errorf("%w: %v", ErrTransportLost, err)
		}
		r.pending = r.buf[:n]
	}
}
