// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publisher ships signal updates to a NATS bus.
//
// Each accepted batch becomes one [Frame]: CBOR-encoded, optionally
// compressed, and queued in a byte-bounded [Buffer] that drops the
// oldest frames when the bus cannot keep up. A single ship loop
// delivers frames in order, retrying with exponential backoff. The
// first frame a publisher ships is a [Metadata] frame carrying the
// descriptor table the updates refer to. It is held ahead of the
// buffer, so overflow never drops it.
//
// Subjects:
//
//	<prefix>.metadata   one Metadata frame per publisher
//	<prefix>.updates    Frame per batch, Sequence increasing from 1
package publisher
