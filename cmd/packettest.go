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
	packetTestTimeout  int
	packetTestGetTelem bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid transceiver frame",
	Long: `Wait for a valid OpenLST frame on the connection until timeout.

This command connects to a serial port or WebSocket bridge and waits for any
complete frame. Bytes outside a frame are skipped and counted. With
--get-telem a telemetry request is sent first, so an idle transceiver
still answers.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestGetTelem, "get-telem", true, "Send a telemetry request before waiting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("lstrelay - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestGetTelem {
		if err := openlst.NewSender(conn, cfg.Serial.HWID).SendCommand(openlst.CmdGetTelem, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent GET_TELEM to hwid %04X\n", cfg.Serial.HWID)
	}
	fmt.Printf("Waiting for valid frame...\n\n")

	msgChan := make(chan openlst.Message, 1)
	errChan := make(chan error, 1)

	receiver := openlst.NewReceiver(conn)
	go func() {
		for {
			msg, err := receiver.Receive()
			if err != nil {
				if errors.Is(err, openlst.ErrTransportLost) {
					errChan <- err
					return
				}
				continue
			}
			if skipped := receiver.Skipped(); skipped > 0 {
				fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
			}
			msgChan <- msg
			return
		}
	}()

	select {
	case msg := <-msgChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", msg.Command, uint8(msg.Command))
		fmt.Printf("  HWID: 0x%04X\n", msg.HWID)
		fmt.Printf("  Seq: %d\n", msg.Seq)
		fmt.Printf("  Length: %d bytes\n", len(msg.Data))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
