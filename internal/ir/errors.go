package ir

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes fatal sync errors.
type ErrorKind string

const (
	// KindConfig covers missing routes, missing artifact maps and
	// unregistered system types.
	KindConfig ErrorKind = "CONFIG"

	// KindData covers input values that cannot be converted, such as a
	// date that does not match its pattern.
	KindData ErrorKind = "DATA"

	// KindProgramming covers operators or commands the configuration
	// schema should never have admitted.
	KindProgramming ErrorKind = "PROGRAMMING"
)

// SyncError is the single error type raised by the sync core.
// Soft failures never become a SyncError.
type SyncError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Route names the route being processed, when known.
	Route string

	// Attribute names the attribute being processed, when known.
	Attribute string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Route != "" {
		msg += fmt.Sprintf(" (route=%s", e.Route)
		if e.Attribute != "" {
			msg += fmt.Sprintf(", attribute=%s", e.Attribute)
		}
		msg += ")"
	} else if e.Attribute != "" {
		msg += fmt.Sprintf(" (attribute=%s)", e.Attribute)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration SyncError.
func NewConfigError(route, format string, args ...any) *SyncError {
	return &SyncError{Kind: KindConfig, Route: route, Message: fmt.Sprintf(format, args...)}
}

// NewDataError creates a data SyncError wrapping cause.
func NewDataError(route, attribute string, cause error, format string, args ...any) *SyncError {
	return &SyncError{Kind: KindData, Route: route, Attribute: attribute, Err: cause, Message: fmt.Sprintf(format, args...)}
}

// NewProgrammingError creates a programming SyncError.
func NewProgrammingError(format string, args ...any) *SyncError {
	return &SyncError{Kind: KindProgramming, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if err wraps a configuration SyncError.
func IsConfigError(err error) bool {
	return hasKind(err, KindConfig)
}

// IsDataError returns true if err wraps a data SyncError.
func IsDataError(err error) bool {
	return hasKind(err, KindData)
}

// IsProgrammingError returns true if err wraps a programming SyncError.
func IsProgrammingError(err error) bool {
	return hasKind(err, KindProgramming)
}

func hasKind(err error, kind ErrorKind) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// WithRoute returns err with its route set when err is a SyncError that has
// none. Other errors are returned unchanged.
func WithRoute(err error, route string) error {
	var se *SyncError
	if errors.As(err, &se) && se.Route == "" {
		cp := *se
		cp.Route = route
		return &cp
	}
	return err
}

// WarningCode identifies a soft failure.
type WarningCode string

const (
	// WarnUnmappedEnum marks an enum value with no value-map entry. The
	// value passes through unchanged.
	WarnUnmappedEnum WarningCode = "UNMAPPED_ENUM"

	// WarnMissingAttribute marks an action config whose attribute is
	// absent from the delta and not required. No action is emitted.
	WarnMissingAttribute WarningCode = "MISSING_ATTRIBUTE"
)

// Warning records a soft failure that was recovered locally.
type Warning struct {
	Code      WarningCode `json:"code"`
	Attribute string      `json:"attribute"`
	Value     string      `json:"value,omitempty"`
	Message   string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (attribute=%s)", w.Code, w.Message, w.Attribute)
}
