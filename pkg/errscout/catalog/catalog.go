// Package catalog describes the API operations errscout can probe and the
// errors each one is already documented to return.
//
// The catalog is declarative data loaded once per session. Lookups are
// case-sensitive exact matches. An operation that is not registered is
// reported with ErrNotRegistered, never as one with no expected errors.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/errscout/pkg/errscout/pathtemplate"
	"github.com/randalmurphal/errscout/pkg/errscout/registry"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// Sentinel errors for catalog lookups.
var (
	// ErrUnknownService indicates the service is not in the catalog.
	ErrUnknownService = errors.New("service not registered")

	// ErrNotRegistered indicates the operation is not in the catalog.
	ErrNotRegistered = errors.New("operation not registered")

	// ErrDuplicate indicates a service or operation was declared twice.
	ErrDuplicate = errors.New("duplicate catalog entry")
)

// LookupError carries the names that failed to resolve.
type LookupError struct {
	Service   string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Operation, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// Location is where a parameter travels in the request.
type Location string

// Parameter locations.
const (
	InPath  Location = "path"
	InQuery Location = "query"
	InBody  Location = "body"
)

// Param describes one input field of an operation.
type Param struct {
	Name        string
	In          Location
	Type        string
	Required    bool
	Description string
}

// Operation is one callable API endpoint.
type Operation struct {
	Service        string
	Name           string
	Method         string
	Path           string
	Summary        string
	Params         []Param
	ExpectedErrors []taxonomy.Category
}

// Ref returns the "Service.operation" reference for the operation.
func (o Operation) Ref() string {
	return o.Service + "." + o.Name
}

// Spec returns the registry view of the operation.
func (o Operation) Spec() OperationSpec {
	return OperationSpec{
		Service:            o.Service,
		Operation:          o.Name,
		ExpectedCategories: slices.Clone(o.ExpectedErrors),
	}
}

// Param returns the named parameter.
func (o Operation) Param(name string) (Param, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// OperationSpec is the set of error categories an operation is documented to return.
type OperationSpec struct {
	Service            string
	Operation          string
	ExpectedCategories []taxonomy.Category
}

// Expects reports whether c is documented for the operation.
func (s OperationSpec) Expects(c taxonomy.Category) bool {
	return slices.Contains(s.ExpectedCategories, c)
}

// ServiceInfo summarises a service for listings.
type ServiceInfo struct {
	Name        string
	Description string
	Operations  int
}

type service struct {
	name        string
	description string
	operations  *registry.Registry[string, Operation]
}

// Catalog is the set of services and operations known to the tool.
// It is safe for concurrent reads.
type Catalog struct {
	services *registry.Registry[string, *service]
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{services: registry.New[string, *service]()}
}

// AddService declares a service.
func (c *Catalog) AddService(name, description string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	s := &service{
		name:        name,
		description: description,
		operations:  registry.New[string, Operation](),
	}
	if err := c.services.Add(name, s); err != nil {
		return &LookupError{Service: name, Err: ErrDuplicate}
	}
	return nil
}

// AddOperation declares an operation on an existing service.
func (c *Catalog) AddOperation(op Operation) error {
	s, ok := c.services.Get(op.Service)
	if !ok {
		return &LookupError{Service: op.Service, Operation: op.Name, Err: ErrUnknownService}
	}
	if op.Name == "" || op.Method == "" || op.Path == "" {
		return fmt.Errorf("%s: operation needs a name, method and path", op.Ref())
	}
	for _, p := range op.Params {
		if p.In == InPath && !slices.Contains(pathtemplate.Params(op.Path), p.Name) {
			return fmt.Errorf("%s: path param %q not in path %s", op.Ref(), p.Name, op.Path)
		}
	}
	op.Method = strings.ToUpper(op.Method)
	if err := s.operations.Add(op.Name, op); err != nil {
		return &LookupError{Service: op.Service, Operation: op.Name, Err: ErrDuplicate}
	}
	return nil
}

// Services lists services in declaration order.
func (c *Catalog) Services() []ServiceInfo {
	var out []ServiceInfo
	c.services.Range(func(_ string, s *service) bool {
		out = append(out, ServiceInfo{
			Name:        s.name,
			Description: s.description,
			Operations:  s.operations.Len(),
		})
		return true
	})
	return out
}

// Operations lists a service's operations in declaration order.
func (c *Catalog) Operations(serviceName string) ([]Operation, error) {
	s, ok := c.services.Get(serviceName)
	if !ok {
		return nil, &LookupError{Service: serviceName, Err: ErrUnknownService}
	}
	return s.operations.Values(), nil
}

// Lookup resolves a (service, operation) pair.
func (c *Catalog) Lookup(serviceName, operation string) (Operation, error) {
	s, ok := c.services.Get(serviceName)
	if !ok {
		return Operation{}, &LookupError{Service: serviceName, Operation: operation, Err: ErrUnknownService}
	}
	op, ok := s.operations.Get(operation)
	if !ok {
		return Operation{}, &LookupError{Service: serviceName, Operation: operation, Err: ErrNotRegistered}
	}
	return op, nil
}

// Spec returns the registry entry for an operation.
func (c *Catalog) Spec(serviceName, operation string) (OperationSpec, error) {
	op, err := c.Lookup(serviceName, operation)
	if err != nil {
		return OperationSpec{}, err
	}
	return op.Spec(), nil
}

// IsDocumented reports whether category is documented for the operation.
// Unregistered operations document nothing.
func (c *Catalog) IsDocumented(serviceName, operation string, category taxonomy.Category) bool {
	spec, err := c.Spec(serviceName, operation)
	if err != nil {
		return false
	}
	return spec.Expects(category)
}

// Describe renders a human-readable description of an operation.
func (c *Catalog) Describe(serviceName, operation string) (string, error) {
	op, err := c.Lookup(serviceName, operation)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", op.Ref())
	fmt.Fprintf(&b, "  %s %s\n", op.Method, op.Path)
	if op.Summary != "" {
		fmt.Fprintf(&b, "  %s\n", op.Summary)
	}

	b.WriteString("\nParameters:\n")
	if len(op.Params) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, p := range op.Params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  %s (%s, %s, %s)", p.Name, p.In, p.Type, req)
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}

	tags := make([]string, 0, len(op.ExpectedErrors))
	for _, cat := range op.ExpectedErrors {
		tags = append(tags, cat.Tag())
	}
	if len(tags) == 0 {
		b.WriteString("\nDocumented errors: (none)\n")
	} else {
		fmt.Fprintf(&b, "\nDocumented errors: %s\n", strings.Join(tags, ", "))
	}
	return b.String(), nil
}
