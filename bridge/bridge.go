// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/clock"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/someip"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrStopped is returned by Start after Shutdown.
	ErrStopped = errors.New("bridge: stopped")
)

// State is the bridge lifecycle state.
type State int32

const (
	Created State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ProtocolClient is the inbound worker. Run blocks until Shutdown;
// Shutdown must be safe to call from inside a listener callback.
type ProtocolClient interface {
	Run(ctx context.Context) error
	Shutdown()
}

// Publisher is the outbound worker.
type Publisher interface {
	Run(ctx context.Context) error
	Shutdown()
	PublishOne(path string, value vss.Value) error
	PublishBatch(batch vss.Batch) error
}

// Config configures a Bridge.
type Config struct {
	Registry  *vss.Registry
	Publisher Publisher
	Binding   Binding

	// NewProtocolClient builds the listener worker around the bridge's
	// Handler. Nil, or a factory that fails, leaves the bridge in
	// publisher-only mode.
	NewProtocolClient func(listener someip.Listener) (ProtocolClient, error)

	// Dummy names the signals FeedDummyData writes.
	Dummy DummyConfig

	// Debug is the numeric verbosity: above 0 traces decoded events,
	// above 2 also their raw payloads.
	Debug int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock
}

// listenerKey marks the listener goroutine's context with the bridge
// that owns it.
type listenerKey struct{}

// Bridge runs the listener and publisher workers and tears them down
// in order, exactly once.
type Bridge struct {
	registry  *vss.Registry
	publisher Publisher
	handler   *Handler
	client    ProtocolClient
	clientErr error
	dummy     DummyConfig
	logger    *slog.Logger
	clock     clock.Clock

	mu            sync.Mutex
	state         State
	cancel        context.CancelFunc
	listenerDone  chan struct{}
	publisherDone chan struct{}

	listenerActive atomic.Bool
	done           chan struct{}
}

// New validates config and builds the protocol client. A client that
// cannot be built is logged once as a configuration problem and the
// bridge continues without it; see [Bridge.ClientError].
func New(config Config) (*Bridge, error) {
	if config.Registry == nil {
		return nil, errors.New("bridge: registry is required")
	}
	if config.Publisher == nil {
		return nil, errors.New("bridge: publisher is required")
	}
	if err := config.Binding.validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	b := &Bridge{
		registry:  config.Registry,
		publisher: config.Publisher,
		dummy:     config.Dummy,
		logger:    config.Logger,
		clock:     config.Clock,
		done:      make(chan struct{}),
		handler: &Handler{
			binding:   config.Binding,
			registry:  config.Registry,
			publisher: config.Publisher,
			debug:     config.Debug,
			logger:    config.Logger,
			metrics:   config.Metrics,
		},
	}

	switch {
	case config.NewProtocolClient == nil:
		b.clientErr = &someip.ConfigurationError{Problems: []string{"no protocol client configured"}}
	default:
		client, err := config.NewProtocolClient(b.handler)
		switch {
		case err != nil:
			b.clientErr = err
		case client == nil:
			b.clientErr = &someip.ConfigurationError{Problems: []string{"protocol client factory returned nil"}}
		default:
			b.client = client
		}
	}
	if b.clientErr != nil {
		b.logger.Error("protocol client unavailable, running publisher only",
			"event", config.Binding.Name,
			"error", b.clientErr,
		)
	}
	return b, nil
}

// Handler returns the event pipeline the protocol client delivers to.
func (b *Bridge) Handler() *Handler { return b.handler }

// ClientError returns why the bridge runs publisher-only, or nil.
func (b *Bridge) ClientError() error { return b.clientErr }

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ListenerActive reports whether the listener goroutine is running.
func (b *Bridge) ListenerActive() bool { return b.listenerActive.Load() }

// Done is closed once the bridge reaches Stopped.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Start launches the publisher and, when a protocol client exists, the
// listener. Workers do not inherit ctx's cancellation: cancelling ctx
// triggers an ordered Shutdown instead.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case Created:
	case Stopped:
		b.mu.Unlock()
		return ErrStopped
	default:
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.state = Running

	workerContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	b.publisherDone = make(chan struct{})
	go func() {
		defer close(b.publisherDone)
		if err := b.publisher.Run(workerContext); err != nil {
			b.logger.Error("publisher exited", "error", err)
		}
	}()

	if b.client != nil {
		b.listenerDone = make(chan struct{})
		b.listenerActive.Store(true)
		listenerContext := context.WithValue(workerContext, listenerKey{}, b)
		go func() {
			defer close(b.listenerDone)
			defer b.listenerActive.Store(false)
			if err := b.client.Run(listenerContext); err != nil {
				b.logger.Error("listener exited", "error", err)
			}
		}()
	}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.logger.Info("context cancelled, shutting down")
			b.Shutdown(context.WithoutCancel(ctx))
		case <-b.done:
		}
	}()

	b.logger.Info("bridge started",
		"event", b.handler.binding.Name,
		"listener", b.client != nil,
		"signals", b.registry.Len(),
	)
	return nil
}

// Shutdown stops the listener, joins it, then stops and joins the
// publisher. The first call runs the sequence; later and concurrent
// calls return immediately. Called with the listener's own context it
// does not wait for the listener.
func (b *Bridge) Shutdown(ctx context.Context) {
	b.mu.Lock()
	switch b.state {
	case Created:
		b.state = Stopped
		b.mu.Unlock()
		close(b.done)
		b.logger.Info("bridge stopped before start")
		return
	case Running:
		b.state = ShuttingDown
	default:
		b.mu.Unlock()
		return
	}
	client, listenerDone, publisherDone, cancel := b.client, b.listenerDone, b.publisherDone, b.cancel
	b.mu.Unlock()

	if client != nil {
		b.logger.Info("stopping listener")
		client.Shutdown()
		if b.isListener(ctx) {
			b.logger.Warn("shutdown called from the listener goroutine, not joining it")
		} else {
			<-listenerDone
		}
	}

	b.logger.Info("stopping publisher")
	b.publisher.Shutdown()
	<-publisherDone
	cancel()

	b.mu.Lock()
	b.state = Stopped
	b.mu.Unlock()
	close(b.done)
	b.logger.Info("bridge stopped")
}

// Close shuts the bridge down and waits for it. It is the deferred
// cleanup for every exit path of the owner. Code running on the
// listener goroutine uses [Bridge.CloseContext] with its own context.
func (b *Bridge) Close() error {
	return b.CloseContext(context.Background())
}

// CloseContext is Close for callers that hold a context. With the
// listener's own context it returns once teardown has been requested
// instead of waiting for Stopped, which needs the listener to return.
func (b *Bridge) CloseContext(ctx context.Context) error {
	b.Shutdown(ctx)
	if b.isListener(ctx) {
		return nil
	}
	<-b.done
	return nil
}

func (b *Bridge) isListener(ctx context.Context) bool {
	owner, _ := ctx.Value(listenerKey{}).(*Bridge)
	return owner == b
}
