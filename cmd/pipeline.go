// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/groundstation"
	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/southspace/lstrelay/pkg/relay"
	"github.com/southspace/lstrelay/pkg/tmtc"
)

// pipeline is a fully wired relay ready to run
type pipeline struct {
	conn     Connection
	connInfo string
	busInfo  string

	stats        *groundstation.Statistics
	dispatcher   *groundstation.Dispatcher
	channel      *relay.Channel
	publisher    *relay.Publisher
	poller       *groundstation.Poller
	orchestrator *groundstation.Orchestrator
}

// buildPipeline opens the transport and wires every component. Events go to
// reporter and to the pipeline's statistics.
func buildPipeline(cfg groundstation.Config, reporter event.Reporter) (*pipeline, error) {
	p := &pipeline{stats: groundstation.NewStatistics()}
	reporter = event.Multi{p.stats, reporter}

	serializer, err := tmtc.NewCBORSerializer()
	if err != nil {
		return nil, err
	}

	slots, err := groundstation.NewSlots(cfg.Beacons)
	if err != nil {
		return nil, err
	}

	var sink groundstation.RecordSink
	if cfg.Connect {
		dialer, err := cfg.Bus.Dialer()
		if err != nil {
			return nil, err
		}
		p.channel = relay.NewChannel(cfg.Relay.QueueSize, reporter)
		p.publisher = relay.NewPublisher(dialer, p.channel, relay.PublisherOptions{
			ReconnectDelay: cfg.Bus.ReconnectDelay.Duration,
			Reporter:       reporter,
		})
		p.busInfo = fmt.Sprintf("%s: %s", cfg.Bus.Kind, dialer.Address())
		sink = p.channel
	} else {
		p.busInfo = "disabled"
	}
	p.dispatcher = groundstation.NewDispatcher(slots, serializer, sink, reporter)

	p.conn, p.connInfo, err = OpenConnection(cfg.Serial)
	if err != nil {
		return nil, err
	}

	if cfg.Poll.Enabled {
		sender := openlst.NewSender(p.conn, cfg.Serial.HWID)
		p.poller = groundstation.NewPoller(sender, cfg.Poll.Interval.Duration, reporter)
	}

	p.orchestrator = groundstation.NewOrchestrator(groundstation.Options{
		Source:       openlst.NewReceiver(p.conn),
		Dispatcher:   p.dispatcher,
		Channel:      p.channel,
		Publisher:    p.publisher,
		Poller:       p.poller,
		Serializer:   serializer,
		Reporter:     reporter,
		DrainTimeout: cfg.Relay.DrainTimeout.Duration,
	})
	return p, nil
}

// busState returns the publisher state, or "disabled" without a bus
func (p *pipeline) busState() string {
	if p.publisher == nil {
		return "disabled"
	}
	return p.publisher.State().String()
}

// Close releases the transport, unblocking the frame reader
func (p *pipeline) Close() error {
	return p.conn.Close()
}
