// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vss

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMapping is returned by Map when it is called without the state
// it needs. It indicates a wiring bug, not bad input.
var ErrMapping = errors.New("vss: mapping failed")

// Field is one named value of a decoded event.
type Field struct {
	Name  string
	Value any
}

// Record is a decoded event that can enumerate its fields. Fields must
// return the same names in the same order on every call.
type Record interface {
	Fields() []Field
}

// Update is one signal write.
type Update struct {
	Path  string `cbor:"path"`
	Value Value  `cbor:"value"`
}

// Batch is the ordered set of updates derived from one event.
type Batch []Update

// Lookup returns the value written to path in this batch.
func (b Batch) Lookup(path string) (Value, bool) {
	for _, update := range b {
		if update.Path == path {
			return update.Value, true
		}
	}
	return Value{}, false
}

// Map converts every field of record that the registry knows into an
// update of the declared type. Unknown fields are skipped. The batch is
// sorted by path.
//
// A field whose Go type cannot be stored as its descriptor's type is a
// mistake in the static field table and panics.
func Map(record Record, registry *Registry) (Batch, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry not initialized", ErrMapping)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMapping)
	}

	fields := record.Fields()
	batch := make(Batch, 0, len(fields))
	for _, field := range fields {
		descriptor, ok := registry.Lookup(field.Name)
		if !ok {
			continue
		}
		value, err := Convert(field.Value, descriptor.Type)
		if err != nil {
			panic(fmt.Sprintf("vss: field %q -> %s: %v", field.Name, descriptor.Path, err))
		}
		batch = append(batch, Update{Path: descriptor.Path, Value: value})
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch, nil
}
