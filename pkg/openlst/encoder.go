// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame creates a complete wire-formatted frame
func EncodeFrame(hwid, seq uint16, system uint8, cmd Command, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("frame data too large: %d bytes (max %d)", len(data), MaxDataSize)
	}

	frame := make([]byte, 3+HeaderSize, 3+HeaderSize+len(data))
	frame[0] = StartByte1
	frame[1] = StartByte2
	frame[2] = uint8(HeaderSize + len(data))
	binary.LittleEndian.PutUint16(frame[3:5], hwid)
	binary.LittleEndian.PutUint16(frame[5:7], seq)
	frame[7] = system
	frame[8] = uint8(cmd)
	return append(frame, data...), nil
}
