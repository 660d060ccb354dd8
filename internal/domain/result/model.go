package result

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lims/lims/internal/domain/parameter"
	"github.com/lims/lims/internal/platform/laberr"
)

// TestResult maps to the test_result table: one captured value for one
// parameter of a test request. The parameter definition is snapshotted at
// capture time so later catalog edits never rewrite reported results.
type TestResult struct {
	ID                uuid.UUID                 `db:"id" json:"id"`
	TestRequestID     uuid.UUID                 `db:"test_request_id" json:"test_request_id"`
	ParameterID       uuid.UUID                 `db:"parameter_id" json:"parameter_id"`
	ParameterSnapshot parameter.ResultParameter `db:"parameter_snapshot" json:"parameter_snapshot"`
	Value             string                    `db:"value" json:"value"`
	Interpretation    string                    `db:"interpretation" json:"interpretation,omitempty"`
	InstrumentID      uuid.UUID                 `db:"instrument_id" json:"instrument_id"`
	EnteredBy         string                    `db:"entered_by" json:"entered_by"`
	EnteredAt         time.Time                 `db:"entered_at" json:"entered_at"`
	UpdatedAt         time.Time                 `db:"updated_at" json:"updated_at"`
}

// Interpret flags a raw value against a parameter definition. Numeric values
// below the normal range get the low flag, above it the high flag, otherwise
// the normal flag. Text parameters carry no interpretation.
func Interpret(p *parameter.ResultParameter, value string) (string, error) {
	if p.Kind != parameter.KindNumeric {
		return "", nil
	}
	if p.Numeric == nil {
		return "", laberr.E(laberr.KindInvalidParameterDefinition,
			"numeric parameter %q has no numeric spec", p.Name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return "", laberr.E(laberr.KindInvalidResultValue,
			"value %q for numeric parameter %q is not a number", value, p.Name)
	}
	switch {
	case v < p.Numeric.NormalMin:
		return p.Numeric.FlagLow, nil
	case v > p.Numeric.NormalMax:
		return p.Numeric.FlagHigh, nil
	default:
		return p.Numeric.FlagNormal, nil
	}
}
