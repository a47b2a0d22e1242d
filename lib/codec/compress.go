// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a frame. The value
// is the first byte of every envelope; changing it breaks consumers.
type Compression uint8

const (
	// CompressionNone stores the frame verbatim.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression. Cheapest on the CPU;
	// suited to high event rates on small ECUs.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level.
	CompressionZstd Compression = 2
)

// MaxFrameSize bounds the uncompressed size Decompress will allocate.
const MaxFrameSize = 16 << 20

// ErrMalformedEnvelope is returned by Decompress for envelopes that
// cannot be parsed or whose declared size does not match.
var ErrMalformedEnvelope = errors.New("codec: malformed compression envelope")

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration name to its Compression. The
// empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress wraps data in an envelope:
//
//	tag (1 byte) | uncompressed length (uvarint) | body
//
// When the requested algorithm does not shrink data the envelope falls
// back to CompressionNone, so the tag always names what was applied.
func Compress(data []byte, algorithm Compression) ([]byte, error) {
	body := data
	applied := CompressionNone

	switch algorithm {
	case CompressionNone:
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// Zero means lz4 judged the input incompressible.
		if written > 0 && written < len(data) {
			body, applied = destination[:written], CompressionLZ4
		}
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) < len(data) {
			body, applied = compressed, CompressionZstd
		}
	default:
		return nil, fmt.Errorf("unsupported compression %d", uint8(algorithm))
	}

	envelope := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	envelope = append(envelope, byte(applied))
	envelope = binary.AppendUvarint(envelope, uint64(len(data)))
	return append(envelope, body...), nil
}

// Decompress reverses Compress.
func Decompress(envelope []byte) ([]byte, error) {
	if len(envelope) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEnvelope, len(envelope))
	}
	algorithm := Compression(envelope[0])
	size, n := binary.Uvarint(envelope[1:])
	if n <= 0 || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: bad length prefix", ErrMalformedEnvelope)
	}
	body := envelope[1+n:]

	switch algorithm {
	case CompressionNone:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrMalformedEnvelope, len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, header says %d", ErrMalformedEnvelope, read, size)
		}
		return destination, nil
	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(decoded)) != size {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, header says %d", ErrMalformedEnvelope, len(decoded), size)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrMalformedEnvelope, envelope[0])
	}
}
