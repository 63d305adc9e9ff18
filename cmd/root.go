// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/southspace/lstrelay/pkg/groundstation"
	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName string
	baudRate int
	hwid     uint16

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Bus flags
	askPassword bool
)

var rootCmd = &cobra.Command{
	Use:   "lstrelay",
	Short: "OpenLST ground station telemetry relay",
	Long: `lstrelay - Relays spacecraft beacons received by an OpenLST transceiver
to a message bus.

Beacons arriving over the transceiver's UART are checked, decoded and split
into one record per field. Each record is CBOR encoded and published to the
bus (NATS or MQTT) under <beacon>.<field>.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from lstrelay.toml (or --config). Flags override the file.

For WebSocket authentication, the password is read from the LSTRELAY_WS_PASSWORD
environment variable, or prompted interactively if not set. The bus password
comes from the config file, LSTRELAY_BUS_PASSWORD, or --ask-password. No
--password flag is provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", groundstation.DefaultConfigFile, "Config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().Uint16Var(&hwid, "hwid", openlst.DefaultHWID, "Transceiver hardware ID")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket serial bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-password", false, "Prompt for the bus password")
}

// loadConfig reads the config file and applies environment and flag overrides.
// The default config file may be absent; an explicit --config must exist.
func loadConfig(cmd *cobra.Command) (groundstation.Config, error) {
	flags := cmd.Flags()

	cfg, err := groundstation.LoadConfig(configPath, flags.Changed("config"))
	if err != nil {
		return cfg, err
	}

	if lvl := os.Getenv("LSTRELAY_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if flags.Changed("port") {
		cfg.Serial.Port = portName
		cfg.Serial.URL = ""
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("hwid") {
		cfg.Serial.HWID = hwid
	}
	if flags.Changed("url") {
		cfg.Serial.URL = wsURL
	}

	if pw := os.Getenv("LSTRELAY_BUS_PASSWORD"); pw != "" {
		cfg.Bus.Password = pw
	}
	if askPassword {
		pw, err := PromptPassword(fmt.Sprintf("Bus password (%s): ", cfg.Bus.User))
		if err != nil {
			return cfg, err
		}
		cfg.Bus.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
