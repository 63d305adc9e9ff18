// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package openlst implements the UART side of an OpenLST radio transceiver.
//
// Frames on the wire look like:
//
//	0x22 0x69 | len | hwid (2, LE) | seq (2, LE) | system | command | data...
//
// where len counts every byte after the length byte. Frames carry no checksum
// on the UART; payloads relayed from the spacecraft are validated one layer up.
package openlst

// Protocol framing bytes
const (
	StartByte1 = 0x22
	StartByte2 = 0x69
)

// Frame size limits
const (
	HeaderSize   = 6 // hwid + seq + system + command
	MaxFrameSize = 255
	MaxDataSize  = MaxFrameSize - HeaderSize
	DefaultHWID  = 0x2DEC
	SystemLocal  = 0x01
)

// Command identifies the meaning of a frame
type Command uint8

// Command values
const (
	CmdAck      Command = 0x10
	CmdRelay    Command = 0x11
	CmdReboot   Command = 0x12
	CmdGetTelem Command = 0x17
	CmdTelem    Command = 0x18
	CmdNack     Command = 0xFF
)

func (c Command) String() string {
	switch c {
	case CmdAck:
		return "ACK"
	case CmdRelay:
		return "RELAY"
	case CmdReboot:
		return "REBOOT"
	case CmdGetTelem:
		return "GET_TELEM"
	case CmdTelem:
		return "TELEM"
	case CmdNack:
		return "NACK"
	}
	return "UNKNOWN"
}

// Decoder states (internal)
const (
	stateSync1 = iota
	stateSync2
	stateLength
	stateBody
)
