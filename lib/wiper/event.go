// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"
)

// SOME/IP identifiers of the wiper status event.
const (
	ServiceID  uint16 = 0x60D0
	InstanceID uint16 = 0x0001
	EventID    uint16 = 0x8001

	// EventGroupID is the event group clients subscribe to.
	EventGroupID uint16 = 0x0064
)

// PayloadSize is the minimum length of a status event payload.
const PayloadSize = 20

var (
	// ErrTruncated is returned for payloads shorter than PayloadSize.
	ErrTruncated = errors.New("wiper: truncated payload")

	// ErrInvalidFlag is returned when a boolean byte is neither 0 nor 1.
	ErrInvalidFlag = errors.New("wiper: invalid flag byte")
)

// Event is a decoded wiper status event.
type Event struct {
	SequenceCounter   uint8
	ActualPosition    float32
	DriveCurrent      float32
	TempGear          uint8
	IsWiping          bool
	IsEndingWipeCycle bool
	IsWiperError      bool
	IsPositionReached bool
	IsBlocked         bool
	IsOverheated      bool
	ECUTemp           uint8
	LINError          uint8
	IsOvervoltage     bool
	IsUndervoltage    bool
}

// Decode parses a status event payload.
func Decode(payload []byte) (Event, error) {
	if len(payload) < PayloadSize {
		return Event{}, fmt.Errorf("%w: %d bytes, need %d", ErrTruncated, len(payload), PayloadSize)
	}

	flag := func(offset int) (bool, error) {
		switch payload[offset] {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return false, fmt.Errorf("%w: 0x%02x at offset %d", ErrInvalidFlag, payload[offset], offset)
		}
	}

	event := Event{
		SequenceCounter: payload[0],
		ActualPosition:  math.Float32frombits(binary.BigEndian.Uint32(payload[1:5])),
		DriveCurrent:    math.Float32frombits(binary.BigEndian.Uint32(payload[5:9])),
		TempGear:        payload[9],
		ECUTemp:         payload[16],
		LINError:        payload[17],
	}
	targets := []struct {
		offset int
		field  *bool
	}{
		{10, &event.IsWiping},
		{11, &event.IsEndingWipeCycle},
		{12, &event.IsWiperError},
		{13, &event.IsPositionReached},
		{14, &event.IsBlocked},
		{15, &event.IsOverheated},
		{18, &event.IsOvervoltage},
		{19, &event.IsUndervoltage},
	}
	for _, target := range targets {
		value, err := flag(target.offset)
		if err != nil {
			return Event{}, err
		}
		*target.field = value
	}
	return event, nil
}

// DecodeRecord is Decode with the result typed as a vss.Record, the
// shape the bridge's event binding expects.
func DecodeRecord(payload []byte) (vss.Record, error) {
	event, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Encode produces the wire form of e. The publisher side never needs
// it; simulators and tests do.
func (e Event) Encode() []byte {
	payload := make([]byte, PayloadSize)
	payload[0] = e.SequenceCounter
	binary.BigEndian.PutUint32(payload[1:5], math.Float32bits(e.ActualPosition))
	binary.BigEndian.PutUint32(payload[5:9], math.Float32bits(e.DriveCurrent))
	payload[9] = e.TempGear
	payload[10] = boolByte(e.IsWiping)
	payload[11] = boolByte(e.IsEndingWipeCycle)
	payload[12] = boolByte(e.IsWiperError)
	payload[13] = boolByte(e.IsPositionReached)
	payload[14] = boolByte(e.IsBlocked)
	payload[15] = boolByte(e.IsOverheated)
	payload[16] = e.ECUTemp
	payload[17] = e.LINError
	payload[18] = boolByte(e.IsOvervoltage)
	payload[19] = boolByte(e.IsUndervoltage)
	return payload
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// Fields implements vss.Record. Fields with no VSS signal (sequence
// counter, temperatures, LIN and voltage flags) are listed too; the
// mapper skips them.
func (e Event) Fields() []vss.Field {
	return []vss.Field{
		{Name: "SequenceCounter", Value: e.SequenceCounter},
		{Name: "ActualPosition", Value: e.ActualPosition},
		{Name: "DriveCurrent", Value: e.DriveCurrent},
		{Name: "TempGear", Value: e.TempGear},
		{Name: "IsWiping", Value: e.IsWiping},
		{Name: "IsEndingWipeCycle", Value: e.IsEndingWipeCycle},
		{Name: "IsWiperError", Value: e.IsWiperError},
		{Name: "IsPositionReached", Value: e.IsPositionReached},
		{Name: "IsBlocked", Value: e.IsBlocked},
		{Name: "IsOverheated", Value: e.IsOverheated},
		{Name: "ECUTemp", Value: e.ECUTemp},
		{Name: "LINError", Value: e.LINError},
		{Name: "IsOvervoltage", Value: e.IsOvervoltage},
		{Name: "IsUndervoltage", Value: e.IsUndervoltage},
	}
}

// String renders the event as a one-line status summary.
func (e Event) String() string {
	return fmt.Sprintf("wiper event #%d: pos=%.2f current=%.2f wiping=%t ending=%t error=%t reached=%t blocked=%t overheated=%t gear_temp=%d ecu_temp=%d lin_error=%d overvoltage=%t undervoltage=%t",
		e.SequenceCounter, e.ActualPosition, e.DriveCurrent,
		e.IsWiping, e.IsEndingWipeCycle, e.IsWiperError, e.IsPositionReached,
		e.IsBlocked, e.IsOverheated, e.TempGear, e.ECUTemp, e.LINError,
		e.IsOvervoltage, e.IsUndervoltage)
}
