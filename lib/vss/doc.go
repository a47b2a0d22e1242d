// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vss models the signals the bridge publishes: dot-separated
// Vehicle Signal Specification paths, their declared value types, and
// typed value instances.
//
// A [Registry] is built once from a table of [Descriptor] values before
// any worker starts and is read-only afterwards, so it is shared across
// goroutines without locking. Each descriptor may name the domain
// field (for example "ActualPosition") that feeds it; [Map] uses those
// names to turn a decoded event [Record] into an ordered [Batch] of
// updates.
//
// Descriptors without a field name are still registered: they are
// announced to the bus with a not-available initial value and can be
// written through the publisher's single-value entry point.
package vss
