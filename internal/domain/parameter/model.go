package parameter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/platform/laberr"
)

// Kind discriminates the two parameter variants.
type Kind string

const (
	KindNumeric Kind = "Numeric"
	KindText    Kind = "Text"
)

// Default interpretation flag labels for numeric parameters.
const (
	DefaultFlagLow    = "Low"
	DefaultFlagNormal = "Normal"
	DefaultFlagHigh   = "High"
)

// NumericSpec holds the numeric-only fields of a result parameter. It is
// present iff Kind is Numeric.
type NumericSpec struct {
	SIUnit         string  `json:"si_unit"`
	ReferenceRange string  `json:"reference_range"`
	NormalMin      float64 `json:"normal_min"`
	NormalMax      float64 `json:"normal_max"`
	FlagLow        string  `json:"flag_low"`
	FlagNormal     string  `json:"flag_normal"`
	FlagHigh       string  `json:"flag_high"`
}

// ResultParameter maps to the result_parameter table. It defines one
// reportable measurement of a test type (e.g. Hemoglobin within CBC).
type ResultParameter struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	TestTypeID uuid.UUID    `db:"test_type_id" json:"test_type_id"`
	Name       string       `db:"name" json:"name"`
	Code       *string      `db:"code" json:"code,omitempty"`
	Kind       Kind         `db:"kind" json:"kind"`
	Numeric    *NumericSpec `json:"numeric,omitempty"`
	Position   int          `db:"position" json:"position"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// ParseReferenceRange parses a textual range of the form "5.4 - 39.9" into
// its two bounds.
func ParseReferenceRange(s string) (min, max float64, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("reference range %q must be of the form \"min - max\"", s)
	}
	min, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("reference range %q: invalid lower bound", s)
	}
	max, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("reference range %q: invalid upper bound", s)
	}
	if math.IsInf(min, 0) || math.IsNaN(min) || math.IsInf(max, 0) || math.IsNaN(max) {
		return 0, 0, fmt.Errorf("reference range %q: bounds must be finite", s)
	}
	return min, max, nil
}

// Validate enforces the variant invariants. For Numeric parameters it also
// derives NormalMin/NormalMax from the reference range and fills in default
// flag labels, so a valid parameter is always fully populated.
func (p *ResultParameter) Validate() error {
	if p.Name == "" {
		return laberr.E(laberr.KindInvalidParameterDefinition, "parameter name is required")
	}
	switch p.Kind {
	case KindNumeric:
		if p.Numeric == nil {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"numeric parameter %q requires a numeric spec", p.Name)
		}
		if p.Numeric.SIUnit == "" {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"numeric parameter %q requires a unit", p.Name)
		}
		if p.Numeric.ReferenceRange == "" {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"numeric parameter %q requires a reference range", p.Name)
		}
		min, max, err := ParseReferenceRange(p.Numeric.ReferenceRange)
		if err != nil {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"numeric parameter %q: %v", p.Name, err)
		}
		if min > max {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"numeric parameter %q: range lower bound %g exceeds upper bound %g", p.Name, min, max)
		}
		p.Numeric.NormalMin = min
		p.Numeric.NormalMax = max
		if p.Numeric.FlagLow == "" {
			p.Numeric.FlagLow = DefaultFlagLow
		}
		if p.Numeric.FlagNormal == "" {
			p.Numeric.FlagNormal = DefaultFlagNormal
		}
		if p.Numeric.FlagHigh == "" {
			p.Numeric.FlagHigh = DefaultFlagHigh
		}
	case KindText:
		if p.Numeric != nil {
			return laberr.E(laberr.KindInvalidParameterDefinition,
				"text parameter %q must not carry a numeric spec", p.Name)
		}
	default:
		return laberr.E(laberr.KindInvalidParameterDefinition,
			"parameter %q: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}
