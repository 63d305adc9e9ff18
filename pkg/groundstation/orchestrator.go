// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"context"
	"errors"
	"time"

	"github.com/southspace/lstrelay/pkg/event"
	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/southspace/lstrelay/pkg/relay"
	"github.com/southspace/lstrelay/pkg/tmtc"
	"github.com/temoto/alive/v2"
)

// DefaultDrainTimeout bounds how long shutdown waits for queued records to be published
const DefaultDrainTimeout = 5 * time.Second

// FrameSource yields received frames; *openlst.Receiver implements it.
// Errors matching openlst.ErrTransportLost are fatal, all others transient.
type FrameSource interface {
	Receive() (openlst.Message, error)
}

// Options wires an Orchestrator. Channel and Publisher are nil when the bus
// is disabled; Poller is nil when polling is disabled.
type Options struct {
	Source       FrameSource
	Dispatcher   *Dispatcher
	Channel      *relay.Channel
	Publisher    *relay.Publisher
	Poller       *Poller
	Serializer   tmtc.Serializer
	Reporter     event.Reporter
	DrainTimeout time.Duration
}

// Orchestrator runs the ingest loop alongside the poller and bus publisher
type Orchestrator struct {
	opts Options
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Reporter == nil {
		opts.Reporter = event.Discard
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Orchestrator{opts: opts}
}

type received struct {
	msg openlst.Message
	err error
}

// Run ingests frames until the transport is lost or ctx is done. On return
// the poller has stopped and the publisher has drained the relay channel or
// been abandoned after the drain timeout. The transport is left open; close it
// after Run returns to release the reader.
func (o *Orchestrator) Run(ctx context.Context) error {
	a := alive.NewAlive()
	// The ingest loop holds one count until shutdown
	a.Add(1)
	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	// The publisher outlives ctx so it can drain
	pubCtx, stopPub := context.WithCancel(context.Background())
	defer stopPub()

	if o.opts.Poller != nil {
		a.Add(1)
		go func() {
			defer a.Done()
			o.opts.Poller.Run(pollCtx)
		}()
	}
	if o.opts.Publisher != nil {
		a.Add(1)
		go func() {
			defer a.Done()
			o.opts.Publisher.Run(pubCtx)
		}()
	}

	frames := make(chan received)
	stop := make(chan struct{})
	defer close(stop)
	go o.read(frames, stop)

	var err error
ingest:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break ingest
		case r := <-frames:
			if r.err != nil {
				if errors.Is(r.err, openlst.ErrTransportLost) {
					err = r.err
					break ingest
				}
				o.report(event.Event{Kind: event.ReceiveFailed, Err: r.err})
				continue
			}
			o.handle(r.msg)
		}
	}

	stopPoll()
	o.shutdown(a, stopPub)
	return err
}

// read forwards frames from the source until a fatal error or stop
func (o *Orchestrator) read(frames chan<- received, stop <-chan struct{}) {
	for {
		msg, err := o.opts.Source.Receive()
		select {
		case frames <- received{msg: msg, err: err}:
		case <-stop:
			return
		}
		if errors.Is(err, openlst.ErrTransportLost) {
			return
		}
	}
}

func (o *Orchestrator) shutdown(a *alive.Alive, stopPub context.CancelFunc) {
	if o.opts.Channel != nil {
		o.opts.Channel.Close()
	}
	a.Stop()
	a.Done()

	timer := time.NewTimer(o.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-a.WaitChan():
	case <-timer.C:
		stopPub()
		a.Wait()
	}
}

func (o *Orchestrator) handle(msg openlst.Message) {
	o.report(event.Event{Kind: event.FrameReceived, Source: msg.Command.String()})

	switch msg.Kind {
	case openlst.KindRelay:
		if o.opts.Dispatcher != nil {
			o.opts.Dispatcher.Dispatch(msg.Data)
		}
	case openlst.KindTelemetry:
		o.handleTelemetry(msg)
	case openlst.KindAck:
		o.report(event.Event{Kind: event.Ack, Source: msg.Command.String()})
	case openlst.KindNack:
		o.report(event.Event{Kind: event.Nack, Source: msg.Command.String()})
	default:
		o.report(event.Event{
			Kind:   event.UnknownMessage,
			Source: msg.Command.String(),
			Fields: map[string]interface{}{"command": uint8(msg.Command), "length": len(msg.Data)},
		})
	}
}

func (o *Orchestrator) handleTelemetry(msg openlst.Message) {
	tm := msg.Telemetry
	if tm == nil {
		return
	}
	o.report(event.Event{Kind: event.LocalTelemetry, Source: LocalTopicPrefix, Fields: telemetryLogFields(tm)})

	if o.opts.Serializer == nil {
		return
	}
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	records, err := TelemetryRecords(tm, at, o.opts.Serializer)
	if err != nil {
		o.report(event.Event{Kind: event.SerializeFailed, Source: LocalTopicPrefix, Err: err})
	}
	if o.opts.Channel == nil {
		return
	}
	for _, rec := range records {
		o.opts.Channel.Send(rec)
	}
}

func (o *Orchestrator) report(e event.Event) {
	e.Time = time.Now()
	o.opts.Reporter.Report(e)
}
