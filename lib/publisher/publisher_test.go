// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/clock"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
	libtestutil "github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/testutil"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

const (
	speedPath = "Vehicle.Speed"
	lightPath = "Vehicle.Cabin.Light.IsOn"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T) *vss.Registry {
	t.Helper()
	registry, err := vss.Register([]vss.Descriptor{
		{Field: "Speed", Path: speedPath, Type: vss.TypeFloat, ChangeType: vss.Continuous},
		{Field: "Light", Path: lightPath, Type: vss.TypeBool},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return registry
}

type harness struct {
	publisher *Publisher
	shipper   *fakeShipper
	metrics   *metrics.Metrics
	registry  *vss.Registry
}

func newHarness(t *testing.T, compression codec.Compression, expectedCalls int) *harness {
	t.Helper()
	registry := testRegistry(t)
	m, err := metrics.New(nil)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	shipper := newFakeShipper(nil, expectedCalls)
	publisher, err := New("", registry, Options{
		Compression: compression,
		Source:      "test-source",
		Shipper:     shipper,
		Clock:       clock.Fake(epoch),
		Logger:      slog.Default(),
		Metrics:     m,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{publisher: publisher, shipper: shipper, metrics: m, registry: registry}
}

func (h *harness) run(t *testing.T) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- h.publisher.Run(context.Background()) }()
	t.Cleanup(h.publisher.Shutdown)
	return result
}

func TestPublisherShipsMetadataThenFramesInOrder(t *testing.T) {
	h := newHarness(t, codec.CompressionNone, 4)

	batches := []vss.Batch{
		{{Path: speedPath, Value: vss.FloatValue(1.5)}},
		{{Path: lightPath, Value: vss.BoolValue(true)}, {Path: speedPath, Value: vss.FloatValue(2.5)}},
		{{Path: lightPath, Value: vss.NotAvailable(vss.TypeBool)}},
	}
	for i, batch := range batches {
		if err := h.publisher.PublishBatch(batch); err != nil {
			t.Fatalf("PublishBatch(%d): %v", i, err)
		}
	}
	if h.publisher.Sequence() != 3 {
		t.Fatalf("Sequence = %d, want 3", h.publisher.Sequence())
	}

	result := h.run(t)
	h.shipper.waitForCalls(t, 4)
	h.publisher.Shutdown()
	if err := libtestutil.RequireReceive(t, result, 5*time.Second, "Run did not return"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !h.shipper.isClosed() {
		t.Error("shipper should be closed after Run returns")
	}

	calls := h.shipper.entries()
	if calls[0].Subject != "vss.metadata" {
		t.Fatalf("first subject = %q, want vss.metadata", calls[0].Subject)
	}
	metadata, err := DecodeMetadata(calls[0].Data)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if metadata.Source != "test-source" || len(metadata.Signals) != 2 {
		t.Errorf("metadata = %+v", metadata)
	}
	if !bytes.Equal(metadata.Schema, h.registry.Fingerprint()) {
		t.Error("metadata schema does not match registry fingerprint")
	}

	for i, call := range calls[1:] {
		if call.Subject != "vss.updates" {
			t.Errorf("frame %d subject = %q", i, call.Subject)
		}
		frame, err := DecodeFrame(call.Data)
		if err != nil {
			t.Fatalf("DecodeFrame(%d): %v", i, err)
		}
		if frame.Sequence != uint64(i+1) {
			t.Errorf("frame %d sequence = %d", i, frame.Sequence)
		}
		if frame.Timestamp != epoch.UnixNano() {
			t.Errorf("frame %d timestamp = %d", i, frame.Timestamp)
		}
		if !bytes.Equal(frame.Schema, h.registry.Fingerprint()) {
			t.Errorf("frame %d schema mismatch", i)
		}
		if len(frame.Updates) != len(batches[i]) {
			t.Fatalf("frame %d has %d updates, want %d", i, len(frame.Updates), len(batches[i]))
		}
		for j, update := range frame.Updates {
			if update != batches[i][j] {
				t.Errorf("frame %d update %d = %+v, want %+v", i, j, update, batches[i][j])
			}
		}
	}

	if got := testutil.ToFloat64(h.metrics.UpdatesTotal); got != 4 {
		t.Errorf("updates metric = %v, want 4", got)
	}
	if got := testutil.ToFloat64(h.metrics.FramesEnqueued); got != 4 {
		t.Errorf("enqueued metric = %v, want 4", got)
	}
}

func TestPublisherMetadataSurvivesOverflow(t *testing.T) {
	m, err := metrics.New(nil)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	const publishes = 100
	shipper := newFakeShipper(nil, publishes+1)
	publisher, err := New("", testRegistry(t), Options{
		BufferMaxBytes: 1024,
		Source:         "test-source",
		Shipper:        shipper,
		Clock:          clock.Fake(epoch),
		Logger:         slog.Default(),
		Metrics:        m,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range publishes {
		if err := publisher.PublishOne(speedPath, vss.FloatValue(float32(i))); err != nil {
			t.Fatalf("PublishOne(%d): %v", i, err)
		}
	}
	dropped := testutil.ToFloat64(m.FramesDropped)
	if dropped == 0 {
		t.Fatal("buffer did not overflow; test needs a smaller buffer")
	}
	pending := publisher.Pending()
	if want := publishes - int(dropped) + 1; pending != want {
		t.Errorf("Pending = %d, want %d buffered updates plus metadata", pending, want)
	}

	result := make(chan error, 1)
	go func() { result <- publisher.Run(context.Background()) }()
	shipper.waitForCalls(t, pending)
	publisher.Shutdown()
	if err := libtestutil.RequireReceive(t, result, 5*time.Second, "Run did not return"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := shipper.entries()
	if calls[0].Subject != "vss.metadata" {
		t.Fatalf("first subject = %q after overflow, want vss.metadata", calls[0].Subject)
	}
	if _, err := DecodeMetadata(calls[0].Data); err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	for i, call := range calls[1:] {
		if call.Subject != "vss.updates" {
			t.Errorf("call %d subject = %q, want vss.updates", i+1, call.Subject)
		}
	}
	last, err := DecodeFrame(calls[len(calls)-1].Data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if last.Sequence != publishes {
		t.Errorf("last sequence = %d, want %d", last.Sequence, publishes)
	}
}

func TestPublisherValidation(t *testing.T) {
	h := newHarness(t, codec.CompressionNone, 0)

	err := h.publisher.PublishOne("Vehicle.Unknown", vss.BoolValue(true))
	if !errors.Is(err, ErrUnknownPath) {
		t.Errorf("unknown path: got %v", err)
	}
	err = h.publisher.PublishOne(speedPath, vss.DoubleValue(1))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("type mismatch: got %v", err)
	}

	// One bad update rejects the whole batch.
	err = h.publisher.PublishBatch(vss.Batch{
		{Path: speedPath, Value: vss.FloatValue(3)},
		{Path: lightPath, Value: vss.Uint8Value(1)},
	})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("mixed batch: got %v", err)
	}
	if h.publisher.Sequence() != 0 {
		t.Errorf("Sequence = %d after rejected publishes", h.publisher.Sequence())
	}
	if h.publisher.Pending() != 1 {
		t.Errorf("Pending = %d, want only the metadata frame", h.publisher.Pending())
	}

	if err := h.publisher.PublishBatch(nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
	if h.publisher.Pending() != 1 {
		t.Errorf("empty batch enqueued a frame")
	}
}

func TestPublisherClosedAfterShutdown(t *testing.T) {
	h := newHarness(t, codec.CompressionNone, 0)
	h.publisher.Shutdown()
	h.publisher.Shutdown()

	if err := h.publisher.PublishOne(speedPath, vss.FloatValue(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishOne after Shutdown: got %v", err)
	}
}

func TestPublisherRunAfterShutdownDrains(t *testing.T) {
	h := newHarness(t, codec.CompressionLZ4, 1)
	h.publisher.Shutdown()

	if err := h.publisher.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.publisher.Shipped() != 1 {
		t.Errorf("Shipped = %d, want the metadata frame", h.publisher.Shipped())
	}
	if err := h.publisher.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestPublisherCompressedFrames(t *testing.T) {
	for _, compression := range []codec.Compression{codec.CompressionLZ4, codec.CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			h := newHarness(t, compression, 2)
			if err := h.publisher.PublishOne(speedPath, vss.FloatValue(42)); err != nil {
				t.Fatalf("PublishOne: %v", err)
			}
			result := h.run(t)
			h.shipper.waitForCalls(t, 2)
			h.publisher.Shutdown()
			libtestutil.RequireReceive(t, result, 5*time.Second, "Run did not return")

			frame, err := DecodeFrame(h.shipper.entries()[1].Data)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			value, ok := frame.Updates.Lookup(speedPath)
			if !ok || value != vss.FloatValue(42) {
				t.Errorf("speed = %v (present %v)", value, ok)
			}
		})
	}
}

func TestPublisherContextCancelStopsRun(t *testing.T) {
	h := newHarness(t, codec.CompressionNone, 1)
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- h.publisher.Run(ctx) }()

	h.shipper.waitForCalls(t, 1)
	cancel()
	libtestutil.RequireReceive(t, result, 5*time.Second, "Run did not return")

	if err := h.publisher.PublishOne(speedPath, vss.FloatValue(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishOne after Run returned: got %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	registry := testRegistry(t)
	shipper := newFakeShipper(nil, 0)

	if _, err := New("", nil, Options{Shipper: shipper}); err == nil {
		t.Error("nil registry accepted")
	}
	for _, prefix := range []string{"vss.*", ".vss", "vss.", "v ss"} {
		if _, err := New("", registry, Options{SubjectPrefix: prefix, Shipper: shipper}); err == nil {
			t.Errorf("prefix %q accepted", prefix)
		}
	}
	if _, err := New("", registry, Options{BufferMaxBytes: -1, Shipper: shipper}); err == nil {
		t.Error("negative buffer size accepted")
	}
}
