// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiper

import "github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/vss"

// Root is the VSS branch of the front wiping system.
const Root = "Vehicle.Body.Windshield.Front.Wiping.System"

// Signal paths.
const (
	PathMode              = Root + ".Mode"
	PathFrequency         = Root + ".Frequency"
	PathTargetPosition    = Root + ".TargetPosition"
	PathActualPosition    = Root + ".ActualPosition"
	PathDriveCurrent      = Root + ".DriveCurrent"
	PathIsWiping          = Root + ".IsWiping"
	PathIsEndingWipeCycle = Root + ".IsEndingWipeCycle"
	PathIsWiperError      = Root + ".IsWiperError"
	PathIsPositionReached = Root + ".IsPositionReached"
	PathIsBlocked         = Root + ".IsBlocked"
	PathIsOverheated      = Root + ".IsOverheated"
)

// Descriptors returns the wiper signal table. Mode, Frequency and
// TargetPosition are requests made by other feeders; the status event
// does not carry them.
func Descriptors() []vss.Descriptor {
	return []vss.Descriptor{
		{
			Path: PathMode, Type: vss.TypeString,
			Description: "Requested mode of wiper system. ['STOP_HOLD', 'WIPE', 'PLANT_MODE', 'EMERGENCY_STOP']",
		},
		{
			Path: PathFrequency, Type: vss.TypeUint8,
			Description: "Wiping frequency/speed, measured in cycles per minute.",
		},
		{
			Path: PathTargetPosition, Type: vss.TypeFloat,
			Description: "Requested position of main wiper blade for the wiper system relative to reference position.",
		},
		{
			Field: "ActualPosition", Path: PathActualPosition, Type: vss.TypeFloat,
			Description: "Actual position of main wiper blade for the wiper system relative to reference position.",
		},
		{
			Field: "DriveCurrent", Path: PathDriveCurrent, Type: vss.TypeFloat,
			Description: "Actual current used by wiper drive.",
		},
		{
			Field: "IsWiping", Path: PathIsWiping, Type: vss.TypeBool,
			Description: "True if wiper blades are moving.",
		},
		{
			Field: "IsEndingWipeCycle", Path: PathIsEndingWipeCycle, Type: vss.TypeBool,
			Description: "Indicates if current wipe movement is completed or near completion.",
		},
		{
			Field: "IsWiperError", Path: PathIsWiperError, Type: vss.TypeBool,
			Description: "Indicates system failure.",
		},
		{
			Field: "IsPositionReached", Path: PathIsPositionReached, Type: vss.TypeBool,
			Description: "Indicates if a requested position has been reached.",
		},
		{
			Field: "IsBlocked", Path: PathIsBlocked, Type: vss.TypeBool,
			Description: "Indicates if wiper movement is blocked.",
		},
		{
			// TODO: derive from TempGear and ECUTemp once their thresholds are published.
			Field: "IsOverheated", Path: PathIsOverheated, Type: vss.TypeBool,
			Description: "Indicates if wiper system is overheated.",
		},
	}
}
