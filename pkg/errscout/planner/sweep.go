package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
)

// DefaultBogusID fills path parameters so probes address resources that do
// not exist.
const DefaultBogusID = "errscout-00000000000000000000000000000000"

// Sweep probes every catalog operation with a fixed set of inputs:
//
//   - empty: only path parameters, set to a bogus id
//   - plausible: bogus ids plus well-typed values for every other parameter
//   - wrong types: bogus ids plus a wrongly typed value for every other
//     parameter
//
// The plausible variant is skipped for writes that address no resource by
// id, since a well-formed create would succeed and leave something behind.
// Identical inputs are sent once.
type Sweep struct {
	catalog  *catalog.Catalog
	services []string
	bogusID  string
	queue    []Action
	pos      int
	built    bool
}

// SweepOption configures a Sweep.
type SweepOption func(*Sweep)

// WithServices restricts the sweep to the named services.
func WithServices(names ...string) SweepOption {
	return func(s *Sweep) {
		s.services = names
	}
}

// WithBogusID sets the value used for path parameters.
func WithBogusID(id string) SweepOption {
	return func(s *Sweep) {
		if id != "" {
			s.bogusID = id
		}
	}
}

// NewSweep creates a sweep over cat.
func NewSweep(cat *catalog.Catalog, opts ...SweepOption) *Sweep {
	s := &Sweep{catalog: cat, bogusID: DefaultBogusID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Planner.
func (s *Sweep) Name() string { return "sweep" }

// Next implements Planner.
func (s *Sweep) Next(ctx context.Context, _ View) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	if !s.built {
		queue, err := s.plan()
		if err != nil {
			return Action{}, err
		}
		s.queue = queue
		s.built = true
	}
	if s.pos >= len(s.queue) {
		return Done(fmt.Sprintf("sweep complete after %d probes", len(s.queue))), nil
	}
	a := s.queue[s.pos]
	s.pos++
	return a, nil
}

// Planned returns every action the sweep will issue.
func (s *Sweep) Planned() ([]Action, error) {
	return s.plan()
}

func (s *Sweep) plan() ([]Action, error) {
	services := s.services
	if len(services) == 0 {
		for _, info := range s.catalog.Services() {
			services = append(services, info.Name)
		}
	}

	var queue []Action
	for _, svc := range services {
		ops, err := s.catalog.Operations(svc)
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			queue = append(queue, s.probesFor(op)...)
		}
	}
	return queue, nil
}

func (s *Sweep) probesFor(op catalog.Operation) []Action {
	base := make(map[string]any)
	hasPathID := false
	hasOther := false
	for _, p := range op.Params {
		if p.In == catalog.InPath {
			base[p.Name] = s.bogusID
			hasPathID = true
		} else {
			hasOther = true
		}
	}

	inputs := []map[string]any{base}

	readOnly := op.Method == "GET" || op.Method == "HEAD"
	if hasOther && (hasPathID || readOnly) {
		plausible := maps.Clone(base)
		for _, p := range op.Params {
			if p.In != catalog.InPath {
				plausible[p.Name] = plausibleValue(p.Type)
			}
		}
		inputs = append(inputs, plausible)
	}

	if hasOther {
		wrong := maps.Clone(base)
		for _, p := range op.Params {
			if p.In != catalog.InPath {
				wrong[p.Name] = wrongValue(p.Type)
			}
		}
		inputs = append(inputs, wrong)
	}

	var seen []string
	var out []Action
	for _, in := range inputs {
		data, _ := json.Marshal(in)
		if slices.Contains(seen, string(data)) {
			continue
		}
		seen = append(seen, string(data))
		out = append(out, Call(op.Service, op.Name, json.RawMessage(data)))
	}
	return out
}

func plausibleValue(typ string) any {
	switch typ {
	case "integer", "number":
		return 1
	case "boolean":
		return true
	case "object":
		return map[string]any{}
	case "array":
		return []any{}
	default:
		return "errscout-probe"
	}
}

func wrongValue(typ string) any {
	switch typ {
	case "integer", "number":
		return "not-a-number"
	case "boolean":
		return "maybe"
	case "object", "array":
		return 42
	default:
		return 12345
	}
}
