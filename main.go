// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// lstrelay - OpenLST ground station telemetry relay
//
// Receives spacecraft beacons from an OpenLST transceiver and publishes
// their decoded fields to a NATS or MQTT message bus.

package main

import (
	"fmt"
	"os"

	"github.com/southspace/lstrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
