// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package mqtt bridges devices that publish over MQTT into the ingestion
// coordinator.
//
// Devices publish to aeolus/{kind}/{streamID}/data, where kind is
// weather_station or kite_player. The payload carries the device API key
// next to the batch:
//
//	{"api_key": "aeolus_key_...", "coordinates": {...}, "data": [...]}
//
// The key must grant write:telemetry. Each stream has its own token bucket
// (mqtt.stream_rate, mqtt.stream_burst); excess messages are dropped. The
// bridge answers on aeolus/{kind}/{streamID}/ack with the same counts the
// HTTP API returns.
package mqtt
