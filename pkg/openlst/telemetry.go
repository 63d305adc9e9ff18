// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"encoding/binary"
	"fmt"
)

// TelemetrySize is the size of a TELEM payload
const TelemetrySize = 78

// Telemetry is the transceiver's own status report
type Telemetry struct {
	Uptime                  uint32 // seconds
	UART0RxCount            uint32
	UART1RxCount            uint32
	RxMode                  uint8
	TxMode                  uint8
	ADC                     [10]int16
	LastRSSI                int8
	LastLQI                 uint8
	LastFreqEst             int8
	PacketsSent             uint32
	CSCount                 uint32
	PacketsGood             uint32
	PacketsRejectedChecksum uint32
	PacketsRejectedReserved uint32
	PacketsRejectedOther    uint32
	Custom0                 uint32
	Custom1                 uint32
}

// ParseTelemetry decodes a TELEM payload (little-endian)
func ParseTelemetry(data []byte) (*Telemetry, error) {
	if len(data) < TelemetrySize {
		return nil, &FrameError{Reason: fmt.Sprintf("telemetry payload too short: %d bytes (expected %d)", len(data), TelemetrySize)}
	}

	le := binary.LittleEndian
	tm := &Telemetry{}
	// data[0] is reserved
	tm.Uptime = le.Uint32(data[1:5])
	tm.UART0RxCount = le.Uint32(data[5:9])
	tm.UART1RxCount = le.Uint32(data[9:13])
	tm.RxMode = data[13]
	tm.TxMode = data[14]
	for i := range tm.ADC {
		tm.ADC[i] = int16(le.Uint16(data[15+2*i : 17+2*i]))
	}
	tm.LastRSSI = int8(data[35])
	tm.LastLQI = data[36]
	tm.LastFreqEst = int8(data[37])
	tm.PacketsSent = le.Uint32(data[38:42])
	tm.CSCount = le.Uint32(data[42:46])
	tm.PacketsGood = le.Uint32(data[46:50])
	tm.PacketsRejectedChecksum = le.Uint32(data[50:54])
	tm.PacketsRejectedReserved = le.Uint32(data[54:58])
	tm.PacketsRejectedOther = le.Uint32(data[58:62])
	// data[62:70] is reserved
	tm.Custom0 = le.Uint32(data[70:74])
	tm.Custom1 = le.Uint32(data[74:78])
	return tm, nil
}

// MarshalBinary encodes the telemetry as a TELEM payload
func (tm *Telemetry) MarshalBinary() ([]byte, error) {
	le := binary.LittleEndian
	data := make([]byte, TelemetrySize)
	le.PutUint32(data[1:5], tm.Uptime)
	le.PutUint32(data[5:9], tm.UART0RxCount)
	le.PutUint32(data[9:13], tm.UART1RxCount)
	data[13] = tm.RxMode
	data[14] = tm.TxMode
	for i, v := range tm.ADC {
		le.PutUint16(data[15+2*i:17+2*i], uint16(v))
	}
	data[35] = byte(tm.LastRSSI)
	data[36] = tm.LastLQI
	data[37] = byte(tm.LastFreqEst)
	le.PutUint32(data[38:42], tm.PacketsSent)
	le.PutUint32(data[42:46], tm.CSCount)
	le.PutUint32(data[46:50], tm.PacketsGood)
	le.PutUint32(data[50:54], tm.PacketsRejectedChecksum)
	le.PutUint32(data[54:58], tm.PacketsRejectedReserved)
	le.PutUint32(data[58:62], tm.PacketsRejectedOther)
	le.PutUint32(data[70:74], tm.Custom0)
	le.PutUint32(data[74:78], tm.Custom1)
	return data, nil
}
