package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTicker     = errors.New("invalid ticker")
	ErrMissingCredential = errors.New("model API credential is not configured")
	ErrTickerNotFound    = errors.New("ticker not found")
	ErrEmptyResponse     = errors.New("model returned no final text")
)

type InvalidTickerError struct {
	Input string
}

func (e *InvalidTickerError) Error() string {
	return fmt.Sprintf("ticker %q must be 1-10 characters of A-Z, '.' or '-'", e.Input)
}

func (e *InvalidTickerError) Is(target error) bool { return target == ErrInvalidTicker }

// TickerNotFoundError reports a provider that has no listing or no price history for Ticker.
type TickerNotFoundError struct {
	Ticker   string
	Provider string
	Reason   string
}

func (e *TickerNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ticker '%s' not found on %s: %s", e.Ticker, e.Provider, e.Reason)
	}
	return fmt.Sprintf("ticker '%s' not found on %s", e.Ticker, e.Provider)
}

func (e *TickerNotFoundError) Is(target error) bool { return target == ErrTickerNotFound }

// ProviderError is any market data failure other than an unknown ticker.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ModelTransportError is a backend failure that survived the retry policy.
type ModelTransportError struct {
	Analyst    string
	Model      string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ModelTransportError) Error() string {
	return fmt.Sprintf("%s call to %s failed after %d attempt(s): %v", e.Analyst, e.Model, e.Attempts, e.Err)
}

func (e *ModelTransportError) Unwrap() error { return e.Err }

// ResponseFormatError means the model text did not coerce into the expected schema.
type ResponseFormatError struct {
	Analyst string
	Schema  SchemaKind
	Err     error
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("failed to parse %s output as %s: %v", e.Analyst, e.Schema, e.Err)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

// OracleMismatchError is carried inside a ResponseFormatError when a model
// compiled scorecard disagrees with the arithmetic compiler.
type OracleMismatchError struct {
	Field string
	Got   any
	Want  any
}

func (e *OracleMismatchError) Error() string {
	return fmt.Sprintf("%s = %v, expected %v", e.Field, e.Got, e.Want)
}

// IsModelError reports whether err belongs to the model layer.
func IsModelError(err error) bool {
	var transport *ModelTransportError
	var format *ResponseFormatError
	return errors.As(err, &transport) || errors.As(err, &format) || errors.Is(err, ErrEmptyResponse)
}

// IsDataError reports whether err came from a market data provider.
func IsDataError(err error) bool {
	var provider *ProviderError
	return errors.Is(err, ErrTickerNotFound) || errors.As(err, &provider)
}
