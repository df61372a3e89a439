package taxonomy

import (
	"net/http"
	"slices"
)

// codeTable maps provider error codes to categories.
// Codes are Cloudflare v4 API codes.
var codeTable = map[int]Category{
	// Authentication
	9103:  Authentication, // unknown X-Auth-Key or X-Auth-Email
	9106:  Authentication, // missing X-Auth-Key, X-Auth-Email or Authorization headers
	9109:  Authentication, // unauthorized to access requested resource
	10000: Authentication, // authentication error
	10001: Authentication, // token does not grant the required permission

	// NotFound
	7003:  NotFound, // could not route to path, object identifier may be invalid
	10007: NotFound, // worker script not found
	10009: NotFound, // key not found
	10013: NotFound, // namespace not found
	81044: NotFound, // DNS record not found

	// Validation
	6003:  Validation, // invalid request headers
	6007:  Validation, // malformed JSON in request body
	7400:  Validation, // the request could not be parsed
	9207:  Validation, // invalid request body
	10011: Validation, // could not parse input
	10012: Validation, // invalid key name
	10020: Validation, // invalid namespace title

	// AlreadyExists
	10014: AlreadyExists, // namespace title already in use
	81053: AlreadyExists, // record with that host already exists
	81057: AlreadyExists, // identical record already exists

	// RateLimit
	971:   RateLimit, // please wait and consider throttling your request speed
	10429: RateLimit, // too many requests

	// QuotaExceeded
	10037: QuotaExceeded, // namespace limit exceeded
	10042: QuotaExceeded, // account storage quota exceeded
}

// statusTable is the fallback used when the provider code is not in codeTable.
var statusTable = map[int]Category{
	http.StatusBadRequest:      Validation,
	http.StatusUnauthorized:    Authentication,
	http.StatusForbidden:       Authentication,
	http.StatusNotFound:        NotFound,
	http.StatusConflict:        AlreadyExists,
	http.StatusTooManyRequests: RateLimit,
}

// CategoryForCode looks up a provider error code.
func CategoryForCode(code int) (Category, bool) {
	c, ok := codeTable[code]
	return c, ok
}

// CategoryForStatus looks up an HTTP status code.
func CategoryForStatus(status int) (Category, bool) {
	c, ok := statusTable[status]
	return c, ok
}

// KnownCodes returns every provider code mapped to category c.
func KnownCodes(c Category) []int {
	var codes []int
	for code, cat := range codeTable {
		if cat == c {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes
}
