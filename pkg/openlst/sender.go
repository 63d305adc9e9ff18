// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"fmt"
	"io"
	"sync"
)

// Sender writes commands to the send half of a transport
type Sender struct {
	mu   sync.Mutex
	w    io.Writer
	hwid uint16
	seq  uint16
}

// NewSender creates a sender addressing the transceiver with the given hardware ID
func NewSender(w io.Writer, hwid uint16) *Sender {
	return &Sender{w: w, hwid: hwid}
}

// SendCommand encodes and writes one command frame
func (s *Sender) SendCommand(cmd Command, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := EncodeFrame(s.hwid, s.seq, SystemLocal, cmd, data)
	if err != nil {
		return err
	}
	s.seq++

	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	return nil
}
