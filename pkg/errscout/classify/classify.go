// Package classify turns raw provider responses into canonical errors.
//
// Classification is a pure function of the response envelope and the HTTP
// status. It never fails and never touches the network, which keeps it
// testable in isolation from the transport and the ledger.
package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// Sentinel messages for responses that carry no usable error details.
const (
	// NoDetailsMessage is used when a failed response has an empty error list.
	NoDetailsMessage = "no error details provided"

	// NullResultMessage is used when a successful response has no result.
	NullResultMessage = "response reported success but result was null"
)

// Envelope is the provider's fixed response wrapper.
type Envelope struct {
	Success  bool            `json:"success"`
	Errors   []ProviderError `json:"errors"`
	Messages []string        `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

// ProviderError is one element of the envelope's error list.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts messages as plain strings or as {code, message}
// objects, which the provider uses interchangeably.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success  bool              `json:"success"`
		Errors   []ProviderError   `json:"errors"`
		Messages []json.RawMessage `json:"messages"`
		Result   json.RawMessage   `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Success = raw.Success
	e.Errors = raw.Errors
	e.Result = raw.Result
	e.Messages = e.Messages[:0]
	for _, m := range raw.Messages {
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			e.Messages = append(e.Messages, s)
			continue
		}
		var pe ProviderError
		if err := json.Unmarshal(m, &pe); err == nil {
			e.Messages = append(e.Messages, pe.Message)
		}
	}
	return nil
}

// HasResult reports whether the envelope carries a non-null result.
func (e Envelope) HasResult() bool {
	trimmed := bytes.TrimSpace(e.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// CanonicalError is the provider-independent description of one failure.
// HTTPStatus is zero when no status was observed.
type CanonicalError struct {
	Category     taxonomy.Category
	ProviderCode int
	Message      string
	HTTPStatus   int
}

// Error implements the error interface.
func (e CanonicalError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (code %d, HTTP %d): %s", e.Category.Tag(), e.ProviderCode, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Category.Tag(), e.ProviderCode, e.Message)
}

// Classify maps a failed envelope to exactly one canonical error.
//
// Rules, first match wins:
//  1. empty error list: Unknown, code 0, NoDetailsMessage
//  2. the first error is primary; the rest are dropped
//  3. provider code table
//  4. HTTP status table
//  5. Unknown
func Classify(env Envelope, httpStatus int) CanonicalError {
	if len(env.Errors) == 0 {
		return CanonicalError{
			Category:   taxonomy.Unknown,
			Message:    NoDetailsMessage,
			HTTPStatus: httpStatus,
		}
	}

	primary := env.Errors[0]
	ce := CanonicalError{
		Category:     taxonomy.Unknown,
		ProviderCode: primary.Code,
		Message:      primary.Message,
		HTTPStatus:   httpStatus,
	}

	if c, ok := taxonomy.CategoryForCode(primary.Code); ok {
		ce.Category = c
		return ce
	}
	if c, ok := taxonomy.CategoryForStatus(httpStatus); ok {
		ce.Category = c
		return ce
	}
	return ce
}

// Evaluate decides whether a response is a failure and classifies it.
// A response fails when success is false, the status is not 2xx, or the
// provider reported success without a result.
func Evaluate(httpStatus int, env Envelope) (CanonicalError, bool) {
	ok2xx := httpStatus >= 200 && httpStatus < 300
	if !env.Success || !ok2xx {
		return Classify(env, httpStatus), true
	}
	if !env.HasResult() {
		return CanonicalError{
			Category:   taxonomy.Unknown,
			Message:    NullResultMessage,
			HTTPStatus: httpStatus,
		}, true
	}
	return CanonicalError{}, false
}

// IsRateLimited reports whether err is a canonical rate-limit error.
func IsRateLimited(err error) bool {
	var ce CanonicalError
	if errors.As(err, &ce) {
		return ce.Category == taxonomy.RateLimit
	}
	return false
}

// Retryable reports whether the failure is worth retrying.
func (e CanonicalError) Retryable() bool {
	return taxonomy.IsRetryable(e.Category)
}
