// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"fmt"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

// Frame is one batch of signal updates as it travels on the bus.
// Sequence starts at 1 per source and increases by one per frame, so a
// consumer can detect frames lost to buffer overflow.
type Frame struct {
	Source    string    `cbor:"source"`
	Sequence  uint64    `cbor:"seq"`
	Schema    []byte    `cbor:"schema"`
	Timestamp int64     `cbor:"ts"`
	Updates   vss.Batch `cbor:"updates"`
}

// Metadata announces the signal table a source publishes against. It
// is the first frame every publisher ships.
type Metadata struct {
	Source  string           `cbor:"source"`
	Schema  []byte           `cbor:"schema"`
	Signals []vss.Descriptor `cbor:"signals"`
}

func encode(v any, compression codec.Compression) ([]byte, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return codec.Compress(data, compression)
}

func decode(data []byte, v any) error {
	raw, err := codec.Decompress(data)
	if err != nil {
		return err
	}
	return codec.Unmarshal(raw, v)
}

// DecodeFrame reverses the encoding of an updates frame.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := decode(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("publisher: decoding frame: %w", err)
	}
	return frame, nil
}

// DecodeMetadata reverses the encoding of a metadata frame.
func DecodeMetadata(data []byte) (Metadata, error) {
	var metadata Metadata
	if err := decode(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("publisher: decoding metadata: %w", err)
	}
	return metadata, nil
}
