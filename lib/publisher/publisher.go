// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/clock"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

var (
	// ErrUnknownPath is returned for an update whose path is not in
	// the registry.
	ErrUnknownPath = errors.New("publisher: unknown signal path")

	// ErrTypeMismatch is returned for an update whose value type
	// differs from the registered signal type.
	ErrTypeMismatch = errors.New("publisher: value type does not match signal")

	// ErrClosed is returned by publish calls after Shutdown.
	ErrClosed = errors.New("publisher: closed")
)

const (
	DefaultSubjectPrefix  = "vss"
	DefaultBufferMaxBytes = 4 << 20
)

// Options configures a Publisher. Zero values select defaults.
type Options struct {
	// SubjectPrefix roots the bus subjects: frames go to
	// <prefix>.updates and the signal table to <prefix>.metadata.
	SubjectPrefix string

	Compression    codec.Compression
	BufferMaxBytes int

	// Source identifies this publisher in every frame. Defaults to a
	// random UUID.
	Source string

	// Shipper overrides the NATS connection to endpoint.
	Shipper Shipper

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Publisher turns signal updates into ordered frames on the bus. Every
// update is validated against the registry before anything is
// enqueued, so a batch is published whole or not at all.
type Publisher struct {
	registry        *vss.Registry
	source          string
	updatesSubject  string
	metadataSubject string
	compression     codec.Compression
	clock           clock.Clock
	logger          *slog.Logger
	metrics         *metrics.Metrics
	loop            *shipLoop

	// mu orders sequence assignment, encoding, and enqueue so that
	// buffer order equals call order.
	mu       sync.Mutex
	sequence uint64
	closed   bool

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a publisher for the signals in registry. The metadata
// frame is held outside the buffer, so it ships before any update and
// buffer overflow never evicts it.
func New(endpoint string, registry *vss.Registry, options Options) (*Publisher, error) {
	if registry == nil {
		return nil, errors.New("publisher: registry is required")
	}
	if options.SubjectPrefix == "" {
		options.SubjectPrefix = DefaultSubjectPrefix
	}
	if strings.ContainsAny(options.SubjectPrefix, " \t\r\n*>") ||
		strings.HasPrefix(options.SubjectPrefix, ".") ||
		strings.HasSuffix(options.SubjectPrefix, ".") {
		return nil, fmt.Errorf("publisher: invalid subject prefix %q", options.SubjectPrefix)
	}
	if options.BufferMaxBytes == 0 {
		options.BufferMaxBytes = DefaultBufferMaxBytes
	}
	if options.BufferMaxBytes < 0 {
		return nil, fmt.Errorf("publisher: buffer size must be positive, got %d", options.BufferMaxBytes)
	}
	if options.Source == "" {
		options.Source = uuid.NewString()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Shipper == nil {
		shipper, err := NewNATSShipper(endpoint, "someip2val "+options.Source, options.Logger)
		if err != nil {
			return nil, err
		}
		options.Shipper = shipper
	}

	p := &Publisher{
		registry:        registry,
		source:          options.Source,
		updatesSubject:  options.SubjectPrefix + ".updates",
		metadataSubject: options.SubjectPrefix + ".metadata",
		compression:     options.Compression,
		clock:           options.Clock,
		logger:          options.Logger,
		metrics:         options.Metrics,
		stop:            make(chan struct{}),
		loop: &shipLoop{
			buffer:  NewBuffer(options.BufferMaxBytes),
			shipper: options.Shipper,
			clock:   options.Clock,
			metrics: options.Metrics,
			logger:  options.Logger,
		},
	}

	metadata := Metadata{
		Source:  p.source,
		Schema:  registry.Fingerprint(),
		Signals: registry.Descriptors(),
	}
	data, err := encode(metadata, p.compression)
	if err != nil {
		return nil, fmt.Errorf("publisher: encoding metadata: %w", err)
	}
	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logMetadata(metadata)
	}
	p.loop.pin(Entry{Subject: p.metadataSubject, Data: data})
	p.metrics.Enqueued(0)
	return p, nil
}

// Source returns the identity stamped on every frame.
func (p *Publisher) Source() string { return p.source }

// Sequence returns the sequence number of the last enqueued frame.
func (p *Publisher) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequence
}

// Shipped returns the number of frames delivered, metadata included.
func (p *Publisher) Shipped() uint64 { return p.loop.shipped.Load() }

// Pending returns the number of frames not yet shipped.
func (p *Publisher) Pending() int { return p.loop.pending() }

// Run ships buffered frames until ctx is cancelled or Shutdown is
// called, then makes one bounded drain pass and closes the shipper.
// Run may only be called once.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("publisher: Run called more than once")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.logger.Info("publisher running",
		"source", p.source,
		"subject", p.updatesSubject,
		"compression", p.compression,
	)
	p.loop.run(ctx)

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if err := p.loop.shipper.Close(); err != nil {
		p.logger.Warn("closing shipper", "error", err)
	}
	p.logger.Info("publisher stopped",
		"shipped", p.loop.shipped.Load(),
		"abandoned", p.loop.pending(),
	)
	return nil
}

// Shutdown stops accepting updates and unblocks Run. Idempotent.
func (p *Publisher) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stopOnce.Do(func() { close(p.stop) })
}

// PublishOne publishes a single signal value.
func (p *Publisher) PublishOne(path string, value vss.Value) error {
	return p.PublishBatch(vss.Batch{{Path: path, Value: value}})
}

// PublishBatch publishes every update in batch as one frame. An empty
// batch publishes nothing.
func (p *Publisher) PublishBatch(batch vss.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	for _, update := range batch {
		if err := p.check(update); err != nil {
			return err
		}
	}
	if len(batch) == 0 {
		return nil
	}

	next := p.sequence + 1
	frame := Frame{
		Source:    p.source,
		Sequence:  next,
		Schema:    p.registry.Fingerprint(),
		Timestamp: p.clock.Now().UnixNano(),
		Updates:   batch,
	}
	data, err := encode(frame, p.compression)
	if err != nil {
		return fmt.Errorf("publisher: encoding frame %d: %w", next, err)
	}
	if err := p.enqueue(p.updatesSubject, data); err != nil {
		return err
	}
	p.sequence = next
	p.metrics.Updates(len(batch))

	p.logger.Debug("frame enqueued",
		"seq", next,
		"updates", len(batch),
		"bytes", len(data),
	)
	return nil
}

func (p *Publisher) check(update vss.Update) error {
	descriptor, ok := p.registry.LookupPath(update.Path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, update.Path)
	}
	if update.Value.Type != descriptor.Type {
		return fmt.Errorf("%w: %s is %s, got %s",
			ErrTypeMismatch, update.Path, descriptor.Type, update.Value.Type)
	}
	return nil
}

func (p *Publisher) enqueue(subject string, data []byte) error {
	evicted, err := p.loop.buffer.Push(Entry{Subject: subject, Data: data})
	if err != nil {
		return err
	}
	if evicted > 0 {
		p.logger.Warn("buffer full, dropped oldest frames", "dropped", evicted)
	}
	p.metrics.Enqueued(evicted)
	p.metrics.Buffered(p.loop.buffer.SizeBytes())
	return nil
}

// logMetadata logs the metadata frame in CBOR diagnostic notation.
func (p *Publisher) logMetadata(metadata Metadata) {
	raw, err := codec.Marshal(metadata)
	if err != nil {
		return
	}
	notation, err := codec.Diagnose(raw)
	if err != nil {
		return
	}
	p.logger.Debug("metadata frame", "subject", p.metadataSubject, "cbor", notation)
}
