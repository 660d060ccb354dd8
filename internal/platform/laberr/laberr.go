// Package laberr defines the typed error taxonomy shared by the domain
// services and the HTTP layer. Services return *Error values; handlers map
// them onto HTTP status codes without inspecting message text.
package laberr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on failure mode.
type Kind string

const (
	// KindInvalidTransition covers transitions the lifecycle table forbids,
	// including optimistic-lock losses that surface as a stale status.
	KindInvalidTransition Kind = "invalid_transition"
	// KindUnassignedSpecimenType means the collected specimen type is not
	// assigned to the request's test type.
	KindUnassignedSpecimenType Kind = "unassigned_specimen_type"
	// KindMissingParameterConfiguration means the test type has no result
	// parameters configured and results cannot be captured.
	KindMissingParameterConfiguration Kind = "missing_parameter_configuration"
	// KindInvalidResultValue means a submitted value is empty or, for a
	// numeric parameter, does not parse as a number.
	KindInvalidResultValue Kind = "invalid_result_value"
	// KindInvalidParameterDefinition means a parameter definition violates
	// its variant invariant (missing unit, malformed range, min > max).
	KindInvalidParameterDefinition Kind = "invalid_parameter_definition"
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict marks concurrent-update losses on non-lifecycle rows.
	KindConflict Kind = "conflict"
)

// Error carries a kind, a human-readable message, and optional structured
// detail such as the current status and the attempted operation.
type Error struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// E builds an error of the given kind with a formatted message.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail entry and returns the same error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]string)
	}
	e.Detail[key] = value
	return e
}

// KindOf extracts the Kind from err, or "" if err is not a taxonomy error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error onto the HTTP status the API contract promises:
// unknown entities are 404, illegal transitions (and lost races, which retry
// as stale-status failures) are 409, every other domain rejection is 422.
// Non-taxonomy errors are treated as internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindUnassignedSpecimenType,
		KindMissingParameterConfiguration,
		KindInvalidResultValue,
		KindInvalidParameterDefinition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
