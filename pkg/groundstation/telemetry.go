// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"errors"
	"fmt"
	"time"

	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/southspace/lstrelay/pkg/tmtc"
)

// LocalTopicPrefix prefixes the topics of the transceiver's own telemetry
const LocalTopicPrefix = "groundstation.lst"

type telemetryField struct {
	name  string
	value interface{}
}

// relayedTelemetry lists the transceiver telemetry values sent to the bus
func relayedTelemetry(tm *openlst.Telemetry) []telemetryField {
	return []telemetryField{
		{"uptime", tm.Uptime},
		{"rssi", tm.LastRSSI},
		{"lqi", tm.LastLQI},
		{"packets_sent", tm.PacketsSent},
		{"packets_good", tm.PacketsGood},
		{"packets_rejected_checksum", tm.PacketsRejectedChecksum},
		{"packets_rejected_other", tm.PacketsRejectedOther},
	}
}

// telemetryLogFields returns the values reported with each telemetry event
func telemetryLogFields(tm *openlst.Telemetry) map[string]interface{} {
	return map[string]interface{}{
		"uptime":                    tm.Uptime,
		"rssi":                      tm.LastRSSI,
		"lqi":                       tm.LastLQI,
		"packets_good":              tm.PacketsGood,
		"packets_rejected_checksum": tm.PacketsRejectedChecksum,
		"packets_rejected_other":    tm.PacketsRejectedOther,
	}
}

// TelemetryRecords serializes transceiver telemetry, one record per value.
// Records that could be encoded are returned even when others failed.
func TelemetryRecords(tm *openlst.Telemetry, at time.Time, s tmtc.Serializer) ([]tmtc.Record, error) {
	ts := uint64(at.UnixMilli())
	fields := relayedTelemetry(tm)
	records := make([]tmtc.Record, 0, len(fields))
	var errs []error
	for _, f := range fields {
		topic := LocalTopicPrefix + "." + f.name
		payload, err := s.Serialize(tmtc.Value{Timestamp: ts, Value: f.value})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		records = append(records, tmtc.Record{Topic: topic, Payload: payload})
	}
	return records, errors.Join(errs...)
}
