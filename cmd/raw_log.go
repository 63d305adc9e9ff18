// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/spf13/cobra"
)

var rawLogGetTelem bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display transceiver frames in human-readable format",
	Long: `Continuously decode and display OpenLST UART frames as they arrive.

Each frame is shown with timestamp, command, hardware ID, sequence number
and payload. Telemetry reports are decoded. Nothing is published.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogGetTelem, "get-telem", false, "Request transceiver telemetry once at start")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("lstrelay - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogGetTelem {
		if err := openlst.NewSender(conn, cfg.Serial.HWID).SendCommand(openlst.CmdGetTelem, nil); err != nil {
			return err
		}
	}

	receiver := openlst.NewReceiver(conn)
	for {
		msg, err := receiver.Receive()
		if err != nil {
			if errors.Is(err, openlst.ErrTransportLost) {
				log.Printf("Connection closed: %v", err)
				return nil
			}
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}
		fmt.Print(openlst.FormatMessage(&msg))
	}
}
