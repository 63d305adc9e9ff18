// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import (
	"fmt"
	"time"
)

// Kind classifies a received frame
type Kind int

// Message kinds
const (
	KindUnknown Kind = iota
	KindRelay
	KindAck
	KindNack
	KindTelemetry
)

func (k Kind) String() string {
	switch k {
	case KindRelay:
		return "relay"
	case KindAck:
		return "ack"
	case KindNack:
		return "nack"
	case KindTelemetry:
		return "telemetry"
	}
	return "unknown"
}

// Message is one decoded frame
type Message struct {
	Kind      Kind
	HWID      uint16
	Seq       uint16
	System    uint8
	Command   Command
	Data      []byte
	Telemetry *Telemetry // set for KindTelemetry
	Timestamp time.Time
}

// KindOf maps a command to the message kind it produces
func KindOf(cmd Command) Kind {
	switch cmd {
	case CmdRelay:
		return KindRelay
	case CmdAck:
		return KindAck
	case CmdNack:
		return KindNack
	case CmdTelem:
		return KindTelemetry
	}
	return KindUnknown
}

// FormatMessage formats a message into a human-readable string
func FormatMessage(m *Message) string {
	result := fmt.Sprintf("[%s] %s (0x%02X) hwid=%04X seq=%d len=%d\n",
		m.Timestamp.Format("15:04:05.000"), m.Command, uint8(m.Command), m.HWID, m.Seq, len(m.Data))

	switch {
	case m.Telemetry != nil:
		tm := m.Telemetry
		result += fmt.Sprintf("  Uptime: %d s, RSSI: %d, LQI: %d\n", tm.Uptime, tm.LastRSSI, tm.LastLQI)
		result += fmt.Sprintf("  Packets: sent=%d good=%d rejected_checksum=%d rejected_other=%d\n",
			tm.PacketsSent, tm.PacketsGood, tm.PacketsRejectedChecksum, tm.PacketsRejectedOther)
	case len(m.Data) > 0:
		result += "  Data: "
		for i, b := range m.Data {
			if i > 0 && i%16 == 0 {
				result += "\n        "
			}
			result += fmt.Sprintf("%02X ", b)
		}
		result += "\n"
	}
	return result
}
