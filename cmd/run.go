// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/rs/zerolog"
	"github.com/southspace/lstrelay/pkg/event"
	"github.com/spf13/cobra"
)

var statsInterval int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the relay service",
	Long: `Receive beacons from the transceiver and publish them to the message bus.

Every relayed frame is offered to each enabled beacon decoder. Frames that
pass the decoder's checksum are split into one CBOR record per field and
queued for the bus. When the queue is full new records are dropped and
counted. The bus connection is retried until it succeeds.

The transceiver is asked for its own telemetry every poll interval; those
values are published under groundstation.lst.<field>.

SIGINT or SIGTERM stops ingest, then waits up to relay.drain_timeout for
queued records to reach the bus.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&statsInterval, "stats-interval", 60, "Statistics log interval in seconds (0 disables)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, event.NewLogReporter(log))
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("connection", p.connInfo).
		Str("bus", p.busInfo).
		Strs("beacons", cfg.Beacons).
		Msg("lstrelay started")

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify failed")
	} else if sent {
		log.Debug().Msg("notified systemd")
	}

	if statsInterval > 0 {
		go logStatistics(ctx, log, p, time.Duration(statsInterval)*time.Second)
	}

	err = p.orchestrator.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	logCounters(log, p)

	if errors.Is(err, context.Canceled) {
		log.Info().Msg("lstrelay stopped")
		return nil
	}
	return err
}

func logStatistics(ctx context.Context, log zerolog.Logger, p *pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logCounters(log, p)
		}
	}
}

func logCounters(log zerolog.Logger, p *pipeline) {
	c := p.stats.Snapshot()
	e := log.Info().
		Uint64("frames", c.Frames).
		Uint64("beacons", c.BeaconsDecoded).
		Uint64("crc_errors", c.CRCErrors).
		Uint64("truncated", c.Truncated).
		Uint64("queued", c.RecordsQueued).
		Uint64("dropped", c.RecordsDropped).
		Uint64("published", c.RecordsPublished).
		Uint64("errors", c.Errors()).
		Float64("frame_rate", c.FrameRate).
		Str("bus_state", p.busState())
	if len(c.PerBeacon) > 0 {
		per := zerolog.Dict()
		for name, n := range c.PerBeacon {
			per.Uint64(name, n)
		}
		e.Dict("per_beacon", per)
	}
	e.Msg("statistics")
}
