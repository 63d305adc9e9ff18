// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/southspace/lstrelay/pkg/event"
	"github.com/spf13/cobra"
)

var (
	showAll bool
	logFile string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the relay with a live terminal UI",
	Long: `Run the same relay pipeline as 'run' and watch it in a terminal UI.

The screen shows frame and beacon counters, the bus connection state, the
latest transceiver telemetry and recent events. By default only info level
events and above are listed. Use --show-all to include debug events.

Logs are discarded unless --log-file is given, since the UI owns the terminal.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show debug events in the event log")
	monitorCmd.Flags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	log, err := newLogger(cfg.LogLevel, out)
	if err != nil {
		return err
	}

	var prog *tea.Program
	toUI := event.Func(func(e event.Event) {
		prog.Send(eventMsg(e))
	})

	p, err := buildPipeline(cfg, event.Multi{event.NewLogReporter(log), toUI})
	if err != nil {
		return err
	}
	defer p.Close()

	prog = tea.NewProgram(initialModel(p, showAll), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := p.orchestrator.Run(ctx)
		prog.Send(stoppedMsg{err: err})
		done <- err
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	fmt.Println("Draining relay queue...")
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
