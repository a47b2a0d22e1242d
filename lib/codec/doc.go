// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec owns the byte-level encoding of everything the bridge
// puts on the distribution bus.
//
// Frames are CBOR (RFC 8949) encoded with Core Deterministic Encoding:
// sorted map keys, smallest integer encoding, no indefinite-length
// items. The same update batch always produces the same bytes, which
// keeps the registry fingerprint stable and makes frames comparable in
// tests.
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
// Encoded frames are then wrapped in a compression envelope:
//
//	envelope, err := codec.Compress(data, codec.CompressionZstd)
//	data, err = codec.Decompress(envelope)
//
// Types that only travel on the bus use `cbor` struct tags. Types that
// are also written to YAML or JSON use `json` tags, which fxamacker/cbor
// reads as a fallback.
package codec
