// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package event

import "github.com/rs/zerolog"

// LogReporter writes events as structured log lines
type LogReporter struct {
	log zerolog.Logger
}

// NewLogReporter creates a reporter writing to log
func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(e Event) {
	ev := r.log.WithLevel(e.Kind.Level())
	if ev == nil {
		return
	}
	ev = ev.Str("event", e.Kind.String())
	if !e.Time.IsZero() {
		ev = ev.Time("at", e.Time)
	}
	if e.Source != "" {
		ev = ev.Str("source", e.Source)
	}
	if e.Topic != "" {
		ev = ev.Str("topic", e.Topic)
	}
	if e.Attempt > 0 {
		ev = ev.Int("attempt", e.Attempt)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg(e.Kind.Message())
}
