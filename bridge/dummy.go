// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

// Dummy ramp parameters.
const (
	DummyPeriod = 1 * time.Second
	DummyStep   = float32(3.14)
	DummyTarget = float32(110)
)

// DummyConfig names the float signals the dummy feeder writes.
type DummyConfig struct {
	ActualPositionPath string
	TargetPositionPath string
}

// FeedDummyData ramps the actual position from 0 towards DummyTarget
// in DummyStep increments, one step per DummyPeriod, publishing the
// target alongside each step. It returns nil when the ramp completes
// or the bridge stops, and ctx.Err() when ctx ends first.
func (b *Bridge) FeedDummyData(ctx context.Context) error {
	for _, path := range []string{b.dummy.ActualPositionPath, b.dummy.TargetPositionPath} {
		descriptor, ok := b.registry.LookupPath(path)
		if !ok {
			return fmt.Errorf("bridge: dummy feeder signal %q not registered", path)
		}
		if descriptor.Type != vss.TypeFloat {
			return fmt.Errorf("bridge: dummy feeder signal %s is %s, want %s", path, descriptor.Type, vss.TypeFloat)
		}
	}

	b.logger.Info("starting dummy feeder",
		"path", b.dummy.ActualPositionPath,
		"target", DummyTarget,
	)
	for step := 0; ; step++ {
		if b.State() != Running {
			return nil
		}
		position := float32(step) * DummyStep

		b.logger.Info("feeding dummy value", "path", b.dummy.ActualPositionPath, "value", position)
		if err := b.publisher.PublishOne(b.dummy.ActualPositionPath, vss.FloatValue(position)); err != nil {
			return b.dummyError(err)
		}
		if err := b.publisher.PublishOne(b.dummy.TargetPositionPath, vss.FloatValue(DummyTarget)); err != nil {
			return b.dummyError(err)
		}

		if float32(step+1)*DummyStep >= DummyTarget {
			b.logger.Info("dummy feeder finished", "steps", step+1)
			return nil
		}
		select {
		case <-b.clock.After(DummyPeriod):
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		}
	}
}

// dummyError treats a publish failure during shutdown as a normal end.
func (b *Bridge) dummyError(err error) error {
	if b.State() != Running {
		return nil
	}
	return fmt.Errorf("bridge: dummy feeder: %w", err)
}
