package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is reports whether target is an EngineError with the same code, so that
// errors built with NewEngineError match their sentinel under errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// Validationf builds an error with the code of a sentinel and a formatted
// message describing the offending values.
func Validationf(sentinel *EngineError, format string, args ...any) *EngineError {
	return &EngineError{Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// ---- Action / sequence errors (-32010 to -32039) ----

var (
	ErrStaleRegistry     = &EngineError{Code: -32010, Message: "number of actions changed since setup completed"}
	ErrDuplicateLabel    = &EngineError{Code: -32011, Message: "action label is already registered"}
	ErrNullAction        = &EngineError{Code: -32012, Message: "cannot register a nil action"}
	ErrActionNotFound    = &EngineError{Code: -32013, Message: "action not found"}
	ErrActionIDMismatch  = &EngineError{Code: -32014, Message: "action ID does not match registration order"}
	ErrMissingPrimaries  = &EngineError{Code: -32015, Message: "primary generator was not added to the stepping loop"}
	ErrActionFailed      = &EngineError{Code: -32016, Message: "action failed"}
	ErrStatusCheckFailed = &EngineError{Code: -32017, Message: "track status check failed"}
	ErrEmptyLabel        = &EngineError{Code: -32018, Message: "action label is empty"}
)

// ---- State / initialization errors (-32040 to -32069) ----

var (
	ErrStreamOutOfRange   = &EngineError{Code: -32040, Message: "stream ID is out of range"}
	ErrZeroSize           = &EngineError{Code: -32041, Message: "number of track slots is not set"}
	ErrCapacityExceeded   = &EngineError{Code: -32042, Message: "insufficient initializer capacity"}
	ErrInvalidParams      = &EngineError{Code: -32043, Message: "core params are incomplete"}
	ErrWarmUpActive       = &EngineError{Code: -32044, Message: "cannot warm up when state has active tracks"}
	ErrEventOutOfRange    = &EngineError{Code: -32045, Message: "event number exceeds max_events"}
	ErrNotImplemented     = &EngineError{Code: -32046, Message: "feature is not implemented"}
	ErrInvalidCapacity    = &EngineError{Code: -32047, Message: "state capacity must be positive"}
	ErrInvalidPrimary     = &EngineError{Code: -32050, Message: "invalid primary particle"}
	ErrDeviceUnavailable  = &EngineError{Code: -32051, Message: "device memory space is not enabled"}
	ErrStepLimitExhausted = &EngineError{Code: -32053, Message: "step iteration limit reached with active tracks"}
)

// ---- Optical errors (-32070 to -32099) ----

var (
	ErrOpticalInputMissing = &EngineError{Code: -32070, Message: "optical core input is incomplete"}
	ErrMFPGridMismatch     = &EngineError{Code: -32071, Message: "model did not build exactly one MFP grid per material"}
	ErrUnsupportedModel    = &EngineError{Code: -32072, Message: "cannot build unsupported optical model"}
	ErrInvalidGrid         = &EngineError{Code: -32073, Message: "invalid mean free path grid"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSchemaMigration = &EngineError{Code: -32133, Message: "schema migration failed"}
	ErrDigestMismatch  = &EngineError{Code: -32134, Message: "state digest mismatch"}
	ErrRunNotFound     = &EngineError{Code: -32135, Message: "run not found"}
	ErrConfigInvalid   = &EngineError{Code: -32136, Message: "invalid configuration"}
	ErrProblemInvalid  = &EngineError{Code: -32137, Message: "invalid problem definition"}
)

// AssertionError is the panic payload raised when an internal precondition,
// postcondition, or invariant fails. It signals API misuse by calling code,
// not a recoverable runtime condition.
type AssertionError struct {
	Kind      string // "precondition", "postcondition", or "internal assertion"
	Condition string
	File      string
	Line      int
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s failed: %s at %s:%d", e.Kind, e.Condition, e.File, e.Line)
}
