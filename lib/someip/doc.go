// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package someip is a receive-only SOME/IP client: it binds the ports a
// vsomeip-style configuration file assigns to this application, splits
// the incoming byte stream into SOME/IP messages, and hands every
// NOTIFICATION to a [Listener].
//
// The package does not implement service discovery, request/response
// or SOME/IP-TP reassembly. Events are expected to arrive on the ports
// listed in the transport configuration.
//
// Startup is gated on two environment variables, as with vsomeip
// itself: VSOMEIP_APPLICATION_NAME names the application and
// VSOMEIP_CONFIGURATION points at the JSON configuration file.
// [LoadEnvironment] reports every missing or unreadable piece at once
// as a [ConfigurationError], which callers treat as "run without a
// listener" rather than as fatal.
//
// Listener callbacks run synchronously on the receive goroutine of the
// socket (UDP) or connection (TCP) that delivered the message. The
// Event payload aliases the receive buffer and is valid only for the
// duration of the callback.
package someip
