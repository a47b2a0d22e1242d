// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/metrics"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/someip"
	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

var (
	// ErrIdentifierMismatch matches events addressed to a service,
	// instance, or event the bridge is not wired for.
	ErrIdentifierMismatch = errors.New("bridge: identifier mismatch")

	// ErrDecode wraps payload decoding failures.
	ErrDecode = errors.New("bridge: decode failed")
)

// IdentifierMismatchError reports a foreign event. Other traffic on the
// same transport is normal, so this is routine rather than a fault.
type IdentifierMismatchError struct {
	Got  someip.EventID
	Want someip.EventID
}

func (e *IdentifierMismatchError) Error() string {
	return fmt.Sprintf("bridge: ignored event [%s], wired for [%s]", e.Got, e.Want)
}

// Is lets errors.Is(err, ErrIdentifierMismatch) match.
func (e *IdentifierMismatchError) Is(target error) bool { return target == ErrIdentifierMismatch }

// Binding wires the bridge to one event type.
type Binding struct {
	// ID is the only (service, instance, event) triple accepted.
	ID someip.EventID

	// Name labels the event in logs.
	Name string

	// Decode turns a payload into a record. It must not panic on
	// any input.
	Decode func(payload []byte) (vss.Record, error)
}

func (b Binding) validate() error {
	if b.Decode == nil {
		return errors.New("bridge: binding has no decoder")
	}
	if b.Name == "" {
		return errors.New("bridge: binding has no name")
	}
	return nil
}

// Handler filters, decodes, maps, and publishes inbound events. It
// implements [someip.Listener].
type Handler struct {
	binding   Binding
	registry  *vss.Registry
	publisher Publisher
	debug     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

var _ someip.Listener = (*Handler)(nil)

// Handle accepts the payload if the triple matches the binding and
// decodes it. A mismatch returns an [*IdentifierMismatchError]; a
// decode failure returns an error wrapping [ErrDecode] and the
// decoder's cause.
func (h *Handler) Handle(ctx context.Context, serviceID, instanceID, eventID uint16, payload []byte) (vss.Record, error) {
	got := someip.EventID{Service: serviceID, Instance: instanceID, Event: eventID}
	if got != h.binding.ID {
		h.metrics.Event(metrics.ResultIgnored)
		h.logger.DebugContext(ctx, "ignored event",
			"event", "["+got.String()+"]",
			"want", "["+h.binding.ID.String()+"]",
		)
		return nil, &IdentifierMismatchError{Got: got, Want: h.binding.ID}
	}

	record, err := h.binding.Decode(payload)
	if err != nil {
		h.metrics.Event(metrics.ResultDecodeError)
		h.logger.ErrorContext(ctx, "event decode failed",
			"event", h.binding.Name,
			"payload_bytes", len(payload),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, h.binding.Name, err)
	}

	if h.debug > 0 {
		h.logger.DebugContext(ctx, "received event", "event", h.binding.Name, "record", record)
	}
	if h.debug > 2 {
		h.logger.DebugContext(ctx, "event payload", "event", h.binding.Name, "payload", hex.EncodeToString(payload))
	}
	return record, nil
}

// HandleEvent runs the full pipeline for one event. The returned error
// is diagnostic; the protocol client keeps receiving regardless.
func (h *Handler) HandleEvent(ctx context.Context, event someip.Event) error {
	record, err := h.Handle(ctx, event.Service, event.Instance, event.Method, event.Payload)
	if err != nil {
		return err
	}

	batch, err := vss.Map(record, h.registry)
	if err != nil {
		return fmt.Errorf("bridge: mapping %s: %w", h.binding.Name, err)
	}

	if err := h.publisher.PublishBatch(batch); err != nil {
		h.metrics.Event(metrics.ResultPublishError)
		h.logger.WarnContext(ctx, "publishing event updates",
			"event", h.binding.Name,
			"updates", len(batch),
			"error", err,
		)
		return fmt.Errorf("bridge: publishing %s: %w", h.binding.Name, err)
	}
	h.metrics.Event(metrics.ResultAccepted)
	return nil
}
