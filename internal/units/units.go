// Package units provides shared constants and validation for area units
package units

import "strings"

// Unit constants
const (
	M2  = "m2"
	HA  = "ha"
	KM2 = "km2"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M2, HA, KM2}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// AreaFactor returns the factor converting square metres to the target
// unit. Coordinates are assumed to be projected metres.
func AreaFactor(targetUnits string) float64 {
	switch targetUnits {
	case HA:
		return 1e-4 // m² to hectares
	case KM2:
		return 1e-6 // m² to km²
	case M2:
		return 1 // no conversion needed
	default:
		return 1 // default to m² if unknown unit
	}
}

// Label returns the display label of a unit.
func Label(unit string) string {
	switch unit {
	case HA:
		return "ha"
	case KM2:
		return "km²"
	case M2, "":
		return "m²"
	default:
		return unit
	}
}
