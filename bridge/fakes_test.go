// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/someip"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/testutil"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/wiper"
)

const testTimeout = 5 * time.Second

var errFakeClosed = errors.New("fake publisher closed")

// timeline records lifecycle steps from several goroutines in the
// order they happened.
type timeline struct {
	mu    sync.Mutex
	steps []string
}

func (l *timeline) add(step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

func (l *timeline) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

// fakePublisher records every publish call. Run blocks until Shutdown.
type fakePublisher struct {
	timeline *timeline

	mu      sync.Mutex
	batches []vss.Batch
	closed  bool

	published chan vss.Batch
	running   chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	runs      atomic.Int32
	shutdowns atomic.Int32
}

func newFakePublisher(line *timeline) *fakePublisher {
	return &fakePublisher{
		timeline:  line,
		published: make(chan vss.Batch, 256),
		running:   make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

func (p *fakePublisher) Run(ctx context.Context) error {
	if p.runs.Add(1) == 1 {
		close(p.running)
	}
	p.timeline.add("publisher.run")
	select {
	case <-p.stop:
	case <-ctx.Done():
	}
	p.timeline.add("publisher.exit")
	return nil
}

func (p *fakePublisher) Shutdown() {
	p.shutdowns.Add(1)
	p.timeline.add("publisher.shutdown")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *fakePublisher) PublishOne(path string, value vss.Value) error {
	return p.PublishBatch(vss.Batch{{Path: path, Value: value}})
}

func (p *fakePublisher) PublishBatch(batch vss.Batch) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errFakeClosed
	}
	p.batches = append(p.batches, batch)
	p.mu.Unlock()
	p.published <- batch
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

// fakeClient delivers queued events to its listener on the Run
// goroutine, the way a real protocol client does.
type fakeClient struct {
	timeline *timeline
	listener someip.Listener

	events  chan someip.Event
	results chan error
	// afterEvent runs on the Run goroutine after each delivery.
	afterEvent func(ctx context.Context)

	running   chan struct{}
	exited    chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	shutdowns atomic.Int32
}

func newFakeClient(line *timeline, listener someip.Listener) *fakeClient {
	return &fakeClient{
		timeline: line,
		listener: listener,
		events:   make(chan someip.Event),
		results:  make(chan error, 16),
		running:  make(chan struct{}),
		exited:   make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

func (c *fakeClient) Run(ctx context.Context) error {
	defer close(c.exited)
	close(c.running)
	defer c.timeline.add("listener.exit")
	for {
		select {
		case <-c.stop:
			return nil
		case event := <-c.events:
			c.results <- c.listener.HandleEvent(ctx, event)
			if c.afterEvent != nil {
				c.afterEvent(ctx)
			}
		}
	}
}

func (c *fakeClient) Shutdown() {
	c.shutdowns.Add(1)
	c.timeline.add("listener.shutdown")
	c.stopOnce.Do(func() { close(c.stop) })
}

// deliver hands event to the Run goroutine and returns the listener's
// verdict.
func (c *fakeClient) deliver(t *testing.T, event someip.Event) error {
	t.Helper()
	select {
	case c.events <- event:
	case <-time.After(testTimeout):
		t.Fatal("listener did not take the event")
	}
	return testutil.RequireReceive(t, c.results, testTimeout, "listener result")
}

func wiperRegistry(t *testing.T) *vss.Registry {
	t.Helper()
	registry, err := vss.Register(wiper.Descriptors())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return registry
}

func wiperBinding() Binding {
	return Binding{
		ID:     someip.EventID{Service: wiper.ServiceID, Instance: wiper.InstanceID, Event: wiper.EventID},
		Name:   "wiper",
		Decode: wiper.DecodeRecord,
	}
}

func wiperEvent(event wiper.Event) someip.Event {
	return someip.Event{
		Service:  wiper.ServiceID,
		Instance: wiper.InstanceID,
		Method:   wiper.EventID,
		Type:     someip.TypeNotification,
		Payload:  event.Encode(),
	}
}

type fixture struct {
	bridge    *Bridge
	publisher *fakePublisher
	client    *fakeClient
	timeline  *timeline
}

// newFixture builds a bridge around fakes. withClient false leaves the
// bridge publisher-only.
func newFixture(t *testing.T, withClient bool, adjust func(*Config)) *fixture {
	t.Helper()
	f := &fixture{timeline: &timeline{}}
	f.publisher = newFakePublisher(f.timeline)

	config := Config{
		Registry:  wiperRegistry(t),
		Publisher: f.publisher,
		Binding:   wiperBinding(),
		Dummy: DummyConfig{
			ActualPositionPath: wiper.PathActualPosition,
			TargetPositionPath: wiper.PathTargetPosition,
		},
	}
	if withClient {
		config.NewProtocolClient = func(listener someip.Listener) (ProtocolClient, error) {
			f.client = newFakeClient(f.timeline, listener)
			return f.client, nil
		}
	}
	if adjust != nil {
		adjust(&config)
	}

	b, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.bridge = b
	t.Cleanup(func() { b.Close() })
	return f
}
