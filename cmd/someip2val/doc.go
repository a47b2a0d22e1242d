// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Someip2val bridges SOME/IP wiper events onto the vehicle signal bus.
// It listens for notifications of the wiper event group, decodes each
// payload into VSS signal updates, and publishes them as ordered CBOR
// frames on NATS.
//
// Data flow:
//
//	SOME/IP notification → handler (filter, decode) → mapper → publisher → buffer → NATS
//
// The SOME/IP side is configured the vsomeip way: VSOMEIP_APPLICATION_NAME
// names the application and VSOMEIP_CONFIGURATION points at its JSON
// transport config. When either is missing or unreadable the bridge
// logs the problem and keeps running as a publisher only, which is
// still useful with --dummy-feeder.
//
// Everything else comes from the YAML file named by --config or
// $SOMEIP2VAL_CONFIG, with flags taking precedence. SOMEIP_CLI_DEBUG
// sets the verbosity: 0 logs errors only, 1 adds lifecycle events, 2
// and above traces every decoded event, and 3 also dumps raw payloads.
//
// SIGINT and SIGTERM shut down the listener first, then drain the
// publisher buffer to the bus for up to five seconds.
package main
