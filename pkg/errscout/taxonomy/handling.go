package taxonomy

// Handling is the client-side advice exported with every catalogued error.
type Handling struct {
	Retryable  bool   `json:"retryable"`
	Suggestion string `json:"suggestion"`
}

// HandlingFor returns the handling advice for a category.
func HandlingFor(c Category) Handling {
	switch c {
	case Authentication:
		return Handling{Suggestion: "Check the API token and its permission scopes; do not retry."}
	case RateLimit:
		return Handling{Retryable: true, Suggestion: "Retry with exponential backoff and honour Retry-After."}
	case NotFound:
		return Handling{Suggestion: "Verify the resource identifier exists before calling."}
	case Validation:
		return Handling{Suggestion: "Fix the request input; the same request will fail again."}
	case QuotaExceeded:
		return Handling{Suggestion: "Free capacity or raise the plan limit before retrying."}
	case AlreadyExists:
		return Handling{Suggestion: "Reuse the existing resource or pick a different name."}
	case Network:
		return Handling{Retryable: true, Suggestion: "Retry once connectivity is restored."}
	case Parse:
		return Handling{Suggestion: "Inspect the raw response; the body was not a JSON envelope."}
	case Unknown:
		return Handling{Suggestion: "Unclassified error; inspect the message and report it."}
	default:
		return Handling{Suggestion: "Unclassified error; inspect the message and report it."}
	}
}

// IsRetryable reports whether callers should retry errors of this category.
func IsRetryable(c Category) bool {
	return HandlingFor(c).Retryable
}
