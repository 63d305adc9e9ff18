// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tmtc

// Record is one serialized telemetry value addressed to a bus topic
type Record struct {
	Topic   string
	Payload []byte
}

// Value is the envelope every record payload is serialized from
type Value struct {
	Timestamp uint64      `cbor:"timestamp"` // unix milliseconds
	Value     interface{} `cbor:"value"`
}
