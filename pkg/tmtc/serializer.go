// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tmtc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Serializer encodes outbound values
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
}

// CBORSerializer encodes values as deterministic CBOR
type CBORSerializer struct {
	mode cbor.EncMode
}

// NewCBORSerializer creates a serializer using core deterministic encoding
func NewCBORSerializer() (*CBORSerializer, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CBORSerializer{mode: mode}, nil
}

// Serialize encodes v to CBOR
func (s *CBORSerializer) Serialize(v interface{}) ([]byte, error) {
	data, err := s.mode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}
