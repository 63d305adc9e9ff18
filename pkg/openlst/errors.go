// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package openlst

import "errors"

// ErrTransportLost is returned once the underlying reader fails; the receiver is unusable afterwards
var ErrTransportLost = errors.New("transport lost")

// FrameError is a malformed frame; decoding resynchronizes on the next start bytes
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "frame error: " + e.Reason
}
