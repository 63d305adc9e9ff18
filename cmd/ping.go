// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the transceiver link by requesting telemetry",
	Long: `Send GET_TELEM to the transceiver and wait for its TELEM report.

Verifies bidirectional communication with the transceiver over serial or the
WebSocket bridge, and that --hwid addresses it. Relayed beacons arriving in
between are ignored.

Exit codes:
  0 - All requests answered
  1 - One or more requests failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each request")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of requests to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("lstrelay - Transceiver Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("HWID: %04X\n", cfg.Serial.HWID)
	fmt.Printf("Timeout: %d seconds per request\n\n", pingTimeout)

	// One reader for the whole run; replies are matched in order
	replies := make(chan openlst.Message, 1)
	readErr := make(chan error, 1)
	receiver := openlst.NewReceiver(conn)
	go func() {
		for {
			msg, err := receiver.Receive()
			if err != nil {
				if errors.Is(err, openlst.ErrTransportLost) {
					readErr <- err
					return
				}
				continue
			}
			if msg.Kind == openlst.KindTelemetry || msg.Kind == openlst.KindNack {
				select {
				case replies <- msg:
				default:
				}
			}
		}
	}()

	sender := openlst.NewSender(conn, cfg.Serial.HWID)
	successCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Request %d/%d: ", i, pingCount)

		// Discard a late reply to the previous request
		select {
		case <-replies:
		default:
		}

		startTime := time.Now()
		if err := sender.SendCommand(openlst.CmdGetTelem, nil); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			continue
		}

		select {
		case msg := <-replies:
			rtt := time.Since(startTime).Round(time.Millisecond)
			if msg.Kind == openlst.KindNack {
				fmt.Printf("NACK from %04X, rtt=%v\n", msg.HWID, rtt)
				continue
			}
			tm := msg.Telemetry
			fmt.Printf("TELEM from %04X, uptime=%s, rssi=%d, rtt=%v\n",
				msg.HWID, formatUptime(uint64(tm.Uptime)), tm.LastRSSI, rtt)
			successCount++

		case err := <-readErr:
			fmt.Printf("READ FAILED: %v\n", err)
			fmt.Fprintf(os.Stderr, "Connection lost\n")
			os.Exit(2)

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d replies received, %.0f%% loss\n",
		pingCount, successCount, float64(pingCount-successCount)/float64(pingCount)*100)

	if successCount < pingCount {
		os.Exit(1)
	}
	return nil
}
