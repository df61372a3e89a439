// Package taxonomy defines the closed vocabulary of error categories and the
// rules that map provider-native signals onto it.
//
// The package is layered the same way every consumer uses it:
//   - Category: the semantic meaning of an error, independent of provider codes
//   - Code table: provider error codes with a known meaning
//   - Status table: HTTP status fallback when the code is unknown
//   - Handling: retry and remediation hints attached to each category
package taxonomy

import "fmt"

// Category is the semantic meaning of an error.
type Category int

const (
	// Unknown is an error the taxonomy cannot explain yet.
	// It is always a discovery candidate.
	Unknown Category = iota

	// Authentication covers missing, invalid and under-scoped credentials.
	Authentication

	// RateLimit indicates the account is being throttled.
	RateLimit

	// NotFound indicates the addressed resource does not exist.
	NotFound

	// Validation indicates the request was malformed or failed input checks.
	Validation

	// QuotaExceeded indicates an account or plan limit was reached.
	QuotaExceeded

	// AlreadyExists indicates a create conflicted with an existing resource.
	AlreadyExists

	// Network is a transport failure. It never reaches the ledger.
	Network

	// Parse is an unreadable response body. It never reaches the ledger.
	Parse
)

// Categories lists every provider category in declaration order.
// Transport-only categories are excluded.
var Categories = []Category{
	Authentication,
	RateLimit,
	NotFound,
	Validation,
	QuotaExceeded,
	AlreadyExists,
	Unknown,
}

var allCategories = []Category{
	Authentication, RateLimit, NotFound, Validation, QuotaExceeded, AlreadyExists, Unknown, Network, Parse,
}

// Tag returns the discriminator used in exported unions and registry entries.
func (c Category) Tag() string {
	switch c {
	case Authentication:
		return "AuthenticationError"
	case RateLimit:
		return "RateLimitError"
	case NotFound:
		return "NotFoundError"
	case Validation:
		return "ValidationError"
	case QuotaExceeded:
		return "QuotaExceededError"
	case AlreadyExists:
		return "AlreadyExistsError"
	case Network:
		return "NetworkError"
	case Parse:
		return "ParseError"
	case Unknown:
		return "UnknownError"
	default:
		return "UnknownError"
	}
}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Authentication:
		return "authentication"
	case RateLimit:
		return "rate_limit"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case QuotaExceeded:
		return "quota_exceeded"
	case AlreadyExists:
		return "already_exists"
	case Network:
		return "network"
	case Parse:
		return "parse"
	case Unknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// IsTransport reports whether the category describes a failure to make the
// call rather than an answer from the provider.
func (c Category) IsTransport() bool {
	return c == Network || c == Parse
}

// MarshalText encodes the category as its tag.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.Tag()), nil
}

// UnmarshalText decodes a tag or a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseTag(string(text))
	if !ok {
		return fmt.Errorf("unknown error category %q", string(text))
	}
	*c = parsed
	return nil
}

// ParseTag resolves a tag ("NotFoundError") or a name ("not_found").
// Matching is exact.
func ParseTag(s string) (Category, bool) {
	for _, c := range allCategories {
		if s == c.Tag() || s == c.String() {
			return c, true
		}
	}
	return Unknown, false
}
