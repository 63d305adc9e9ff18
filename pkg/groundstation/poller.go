// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"context"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/openlst"
)

// DefaultPollInterval is how often the transceiver is asked for telemetry
const DefaultPollInterval = 10 * time.Second

// CommandSender sends commands to the local transceiver; *openlst.Sender implements it
type CommandSender interface {
	SendCommand(cmd openlst.Command, data []byte) error
}

// Poller periodically requests telemetry from the transceiver
type Poller struct {
	sender   CommandSender
	command  openlst.Command
	interval time.Duration
	reporter event.Reporter
}

// NewPoller creates a poller sending GET_TELEM every interval
func NewPoller(sender CommandSender, interval time.Duration, reporter event.Reporter) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if reporter == nil {
		reporter = event.Discard
	}
	return &Poller{
		sender:   sender,
		command:  openlst.CmdGetTelem,
		interval: interval,
		reporter: reporter,
	}
}

// Interval returns the polling period
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls until ctx is done. Send failures are reported and retried on
// the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e := event.Event{Time: time.Now(), Kind: event.PollSent, Source: p.command.String()}
		if err := p.sender.SendCommand(p.command, nil); err != nil {
			e.Kind = event.PollFailed
			e.Err = err
		}
		p.reporter.Report(e)
	}
}
