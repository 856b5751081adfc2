package domain

import "errors"

// DataError wraps a failure of the market data loader or result sink.
// The replay engine never retries; callers surface it as fatal.
type DataError struct {
	Op  string // Operation that failed (e.g., "load quotes", "save run")
	Err error  // Underlying error
}

func (e *DataError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new data access error
func NewDataError(op string, err error) *DataError {
	return &DataError{Op: op, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoQuotes is returned when the requested window has no quote records.
	// Without quotes there is no tradable state, so the run aborts before any tick.
	ErrNoQuotes = errors.New("no quote records in requested window")

	// ErrInvalidTimeRange is returned when end precedes start or the tick
	// interval is not positive.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrInvalidSymbol is returned when exchange or symbol is empty.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrReplayHalted is returned when a replay stopped on an internal
	// invariant breach. The state dump holds the details.
	ErrReplayHalted = errors.New("replay halted")
)
