// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vss

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/codec"
)

var (
	// ErrDuplicatePath matches every *DuplicatePathError.
	ErrDuplicatePath = errors.New("vss: duplicate signal path")

	// ErrDuplicateField is returned when two descriptors claim the
	// same domain field.
	ErrDuplicateField = errors.New("vss: duplicate field name")

	// ErrInvalidDescriptor is returned for descriptors with a
	// malformed path or an unspecified type.
	ErrInvalidDescriptor = errors.New("vss: invalid descriptor")
)

// DuplicatePathError reports the two table positions that share Path.
type DuplicatePathError struct {
	Path   string
	First  int
	Second int
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("vss: signal path %q registered at positions %d and %d", e.Path, e.First, e.Second)
}

// Is lets errors.Is(err, ErrDuplicatePath) match.
func (e *DuplicatePathError) Is(target error) bool { return target == ErrDuplicatePath }

// Descriptor declares one publishable signal.
type Descriptor struct {
	// Field is the domain field that feeds this signal, or empty when
	// no event carries it.
	Field string `cbor:"field,omitempty"`

	// Path is the unique dot-separated VSS path.
	Path string `cbor:"path"`

	Type       DataType   `cbor:"type"`
	ChangeType ChangeType `cbor:"change_type"`

	// Initial is the value announced before any update arrives.
	// Register fills in NotAvailable(Type) when left zero.
	Initial Value `cbor:"initial"`

	Description string `cbor:"description,omitempty"`
}

// Registry is the immutable signal table. Safe for concurrent reads.
type Registry struct {
	descriptors []Descriptor
	byField     map[string]int
	byPath      map[string]int
	fingerprint [32]byte
}

// Register validates descriptors and builds a Registry preserving
// their order. It fails on the first duplicate path or field, or on a
// descriptor with an empty path segment or unspecified type.
func Register(descriptors []Descriptor) (*Registry, error) {
	registry := &Registry{
		descriptors: make([]Descriptor, len(descriptors)),
		byField:     make(map[string]int, len(descriptors)),
		byPath:      make(map[string]int, len(descriptors)),
	}

	for index, descriptor := range descriptors {
		if err := validatePath(descriptor.Path); err != nil {
			return nil, fmt.Errorf("%w: position %d: %v", ErrInvalidDescriptor, index, err)
		}
		if !descriptor.Type.Valid() {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDescriptor, descriptor.Path, descriptor.Type)
		}
		if _, ok := changeTypeNames[descriptor.ChangeType]; !ok {
			return nil, fmt.Errorf("%w: %s: change type %d", ErrInvalidDescriptor, descriptor.Path, descriptor.ChangeType)
		}
		if first, exists := registry.byPath[descriptor.Path]; exists {
			return nil, &DuplicatePathError{Path: descriptor.Path, First: first, Second: index}
		}
		if descriptor.Field != "" {
			if first, exists := registry.byField[descriptor.Field]; exists {
				return nil, fmt.Errorf("%w: %q feeds both %s and %s",
					ErrDuplicateField, descriptor.Field, registry.descriptors[first].Path, descriptor.Path)
			}
			registry.byField[descriptor.Field] = index
		}
		if descriptor.Initial == (Value{}) {
			descriptor.Initial = NotAvailable(descriptor.Type)
		} else if descriptor.Initial.Type != descriptor.Type {
			return nil, fmt.Errorf("%w: %s: initial value is %v, declared %v",
				ErrInvalidDescriptor, descriptor.Path, descriptor.Initial.Type, descriptor.Type)
		}
		registry.byPath[descriptor.Path] = index
		registry.descriptors[index] = descriptor
	}

	encoded, err := codec.Marshal(registry.descriptors)
	if err != nil {
		return nil, fmt.Errorf("vss: encoding descriptor table: %w", err)
	}
	registry.fingerprint = blake3.Sum256(encoded)
	return registry, nil
}

func validatePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return fmt.Errorf("path %q has an empty segment", path)
		}
		if strings.ContainsAny(segment, " \t\n*>") {
			return fmt.Errorf("path %q contains a reserved character", path)
		}
	}
	return nil
}

// Lookup returns the descriptor fed by the named domain field.
func (r *Registry) Lookup(field string) (Descriptor, bool) {
	index, ok := r.byField[field]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[index], true
}

// LookupPath returns the descriptor registered under path.
func (r *Registry) LookupPath(path string) (Descriptor, bool) {
	index, ok := r.byPath[path]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[index], true
}

// Descriptors returns a copy of the table in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}

// Len returns the number of registered signals.
func (r *Registry) Len() int { return len(r.descriptors) }

// Fingerprint is the BLAKE3 digest of the CBOR-encoded descriptor
// table. Frames carry it so consumers can tell which schema produced
// them.
func (r *Registry) Fingerprint() []byte {
	digest := r.fingerprint
	return digest[:]
}
