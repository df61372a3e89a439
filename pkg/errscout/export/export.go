// Package export reduces a ledger to the persisted discovery artifacts.
//
// Export is pure: the same ledger snapshot always produces byte-identical
// output. Services and operations appear in the order their first entry was
// recorded, and so do the errors within an operation. Writing files is left
// to the caller.
package export

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// Result holds every artifact derived from one ledger.
type Result struct {
	// TypeDefinitions is TypeScript source with one discriminated union
	// per operation.
	TypeDefinitions string

	// Catalogs maps each service with entries to its JSON catalog.
	Catalogs map[string]ServiceCatalog

	// Services lists the catalog keys in first-seen order.
	Services []string
}

// Summary is the per-service header of a catalog.
type Summary struct {
	TotalUniqueErrors     int    `json:"totalUniqueErrors"`
	DocumentedErrors      int    `json:"documentedErrors"`
	UndocumentedErrors    int    `json:"undocumentedErrors"`
	DocumentationCoverage string `json:"documentationCoverage"`
}

// ServiceCatalog is the JSON document written per service.
type ServiceCatalog struct {
	Service           string              `json:"service"`
	Summary           Summary             `json:"summary"`
	Operations        Operations          `json:"operations"`
	RenameSuggestions []ledger.Annotation `json:"renameSuggestions,omitempty"`
}

// JSON renders the catalog as indented JSON with a trailing newline.
func (c ServiceCatalog) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s catalog: %w", c.Service, err)
	}
	return append(data, '\n'), nil
}

// Operation returns the named operation's catalog.
func (c ServiceCatalog) Operation(name string) (OperationCatalog, bool) {
	for _, op := range c.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return OperationCatalog{}, false
}

// OperationCatalog holds the errors observed for one operation.
type OperationCatalog struct {
	Name             string   `json:"-"`
	DocumentedErrors []string `json:"documentedErrors"`
	Errors           Errors   `json:"errors"`
}

// Error returns the record stored under key.
func (o OperationCatalog) Error(key string) (ErrorRecord, bool) {
	for _, e := range o.Errors {
		if e.Key == key {
			return e, true
		}
	}
	return ErrorRecord{}, false
}

// ErrorRecord is one catalogued error. Key is its property name in the
// errors object: the category tag, suffixed with the provider code when
// the tag is already taken within the operation.
type ErrorRecord struct {
	Key             string            `json:"-"`
	Code            int               `json:"code"`
	HTTPStatus      int               `json:"httpStatus,omitempty"`
	Category        string            `json:"category"`
	IsDocumented    bool              `json:"isDocumented"`
	Message         string            `json:"message"`
	TriggerExamples []json.RawMessage `json:"triggerExamples"`
	Occurrences     int               `json:"occurrences"`
	Handling        taxonomy.Handling `json:"handling"`
	FirstSeen       time.Time         `json:"firstSeen"`
}

// Operations marshals as an object keyed by operation name, in order.
type Operations []OperationCatalog

// MarshalJSON implements json.Marshaler.
func (o Operations) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(o), func(i int) (string, any) { return o[i].Name, o[i] })
}

// Errors marshals as an object keyed by ErrorRecord.Key, in order.
type Errors []ErrorRecord

// MarshalJSON implements json.Marshaler.
func (e Errors) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(e), func(i int) (string, any) { return e[i].Key, e[i] })
}

// Option configures Export.
type Option func(*exporter)

type exporter struct {
	catalog *catalog.Catalog
}

// WithCatalog lists each operation's documentedErrors from the catalog's
// expected categories instead of from the documented entries observed.
func WithCatalog(c *catalog.Catalog) Option {
	return func(x *exporter) {
		x.catalog = c
	}
}

// Export builds every artifact from l.
func Export(l *ledger.Ledger, opts ...Option) Result {
	x := &exporter{}
	for _, opt := range opts {
		opt(x)
	}

	res := Result{Catalogs: make(map[string]ServiceCatalog)}
	for _, svc := range l.Services() {
		res.Services = append(res.Services, svc)
		res.Catalogs[svc] = x.buildCatalog(l, svc)
	}
	res.TypeDefinitions = TypeDefinitions(l)
	return res
}

func (x *exporter) buildCatalog(l *ledger.Ledger, service string) ServiceCatalog {
	s := l.Summary(service)
	cat := ServiceCatalog{
		Service: service,
		Summary: Summary{
			TotalUniqueErrors:     s.Total,
			DocumentedErrors:      s.Documented,
			UndocumentedErrors:    s.Undocumented,
			DocumentationCoverage: s.Coverage,
		},
		RenameSuggestions: l.AnnotationsFor(service),
	}

	index := make(map[string]int)
	for _, e := range l.EntriesFor(service) {
		i, ok := index[e.Operation]
		if !ok {
			i = len(cat.Operations)
			index[e.Operation] = i
			cat.Operations = append(cat.Operations, OperationCatalog{
				Name:             e.Operation,
				DocumentedErrors: x.expectedTags(service, e.Operation),
			})
		}
		op := &cat.Operations[i]

		tag := e.Category.Tag()
		key := tag
		if _, taken := op.Error(key); taken {
			key = fmt.Sprintf("%s_%d", tag, e.ProviderCode)
		}
		if x.catalog == nil && e.IsDocumented && !slices.Contains(op.DocumentedErrors, tag) {
			op.DocumentedErrors = append(op.DocumentedErrors, tag)
		}

		examples := e.TriggerExamples
		if examples == nil {
			examples = []json.RawMessage{}
		}
		op.Errors = append(op.Errors, ErrorRecord{
			Key:             key,
			Code:            e.ProviderCode,
			HTTPStatus:      e.HTTPStatus,
			Category:        e.Category.String(),
			IsDocumented:    e.IsDocumented,
			Message:         e.Message,
			TriggerExamples: examples,
			Occurrences:     e.Occurrences,
			Handling:        taxonomy.HandlingFor(e.Category),
			FirstSeen:       e.FirstSeen.UTC(),
		})
	}
	return cat
}

// expectedTags returns the operation's documented tags from the catalog,
// or an empty list when there is no catalog or the operation is unknown.
func (x *exporter) expectedTags(service, operation string) []string {
	tags := []string{}
	if x.catalog == nil {
		return tags
	}
	spec, err := x.catalog.Spec(service, operation)
	if err != nil {
		return tags
	}
	for _, c := range spec.ExpectedCategories {
		tags = append(tags, c.Tag())
	}
	return tags
}
