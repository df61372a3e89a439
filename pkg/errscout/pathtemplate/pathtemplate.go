// Package pathtemplate fills {param} placeholders in API paths.
//
//	exp := pathtemplate.New(pathtemplate.WithMissingAction(pathtemplate.MissingError))
//	p, err := exp.Expand("/accounts/{account_id}/storage/kv/namespaces/{namespace_id}", vars)
//
// Values are path-escaped, so an input such as "a/b" cannot change the route.
package pathtemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle placeholders without a value.
type MissingAction int

const (
	// MissingKeep leaves the placeholder as-is.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty segment.
	MissingEmpty

	// MissingError reports every missing placeholder.
	MissingError
)

// MissingParamsError lists placeholders that had no value.
type MissingParamsError struct {
	Names []string
}

// Error implements the error interface.
func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("missing path parameters: %s", strings.Join(e.Names, ", "))
}

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing placeholders are handled.
// Default: MissingKeep.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// Expander expands path templates. It is safe for concurrent use.
type Expander struct {
	missingAction MissingAction
}

// New creates an Expander.
func New(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every {name} in path with the path-escaped value of vars[name].
// Empty string values count as missing.
func (e *Expander) Expand(path string, vars map[string]any) (string, error) {
	var missing []string

	result := placeholder.ReplaceAllStringFunc(path, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := vars[name]; ok && val != nil {
			if s := fmt.Sprintf("%v", val); s != "" {
				return url.PathEscape(s)
			}
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &MissingParamsError{Names: missing}
	}
	return result, nil
}

// Params returns the placeholder names in path, in order of appearance.
func Params(path string) []string {
	matches := placeholder.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
