// Package ledger accumulates error discoveries for one probing session.
//
// Each distinct (service, operation, category, provider code) combination
// maps to exactly one Entry. Entries keep their creation order, which is
// the order exporters and reports render them in.
//
// A Ledger is not safe for concurrent use. A session mutates it from a
// single control flow through the probe executor.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// MaxTriggerExamples is the number of distinct inputs kept per entry.
const MaxTriggerExamples = 3

// NoCoverage is the coverage string for a service with no entries.
const NoCoverage = "N/A"

// Key identifies an entry.
type Key struct {
	Service      string
	Operation    string
	Category     taxonomy.Category
	ProviderCode int
}

// String renders the key as "KV.getValue/NotFoundError/10013".
func (k Key) String() string {
	return fmt.Sprintf("%s.%s/%s/%d", k.Service, k.Operation, k.Category.Tag(), k.ProviderCode)
}

// Observation is a single classified failure. It is transient: the ledger
// folds it into an Entry and does not keep it.
type Observation struct {
	Service      string
	Operation    string
	Category     taxonomy.Category
	ProviderCode int
	Message      string
	HTTPStatus   int
	TriggerInput json.RawMessage
	Timestamp    time.Time
	IsDocumented bool
}

// Key returns the ledger key the observation folds into.
func (o Observation) Key() Key {
	return Key{Service: o.Service, Operation: o.Operation, Category: o.Category, ProviderCode: o.ProviderCode}
}

// Entry is the deduplicated record for one key.
type Entry struct {
	Key
	Message         string
	HTTPStatus      int
	Occurrences     int
	TriggerExamples []json.RawMessage
	FirstSeen       time.Time
	LastSeen        time.Time
	IsDocumented    bool
}

func (e *Entry) clone() Entry {
	out := *e
	out.TriggerExamples = make([]json.RawMessage, len(e.TriggerExamples))
	for i, ex := range e.TriggerExamples {
		out.TriggerExamples[i] = append(json.RawMessage(nil), ex...)
	}
	return out
}

// Summary is the per-service roll-up.
type Summary struct {
	Total        int    `json:"totalErrors"`
	Documented   int    `json:"documented"`
	Undocumented int    `json:"undocumented"`
	Coverage     string `json:"documentationCoverage"`
}

// Annotation is a rename suggestion attached to the ledger. It never alters
// entries.
type Annotation struct {
	Service      string    `json:"service"`
	Operation    string    `json:"operation"`
	CurrentTag   string    `json:"currentTag"`
	SuggestedTag string    `json:"suggestedTag"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// Ledger is the append-and-update discovery store.
type Ledger struct {
	entries     []*Entry
	index       map[Key]*Entry
	annotations []Annotation
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{index: make(map[Key]*Entry)}
}

// Record folds an observation into the ledger and returns a copy of the
// resulting entry.
//
// The first observation for a key creates the entry and fixes its message,
// status, first-seen time and documented status. Later observations bump
// Occurrences and add the trigger input if it is structurally new and the
// example list has room.
func (l *Ledger) Record(obs Observation) Entry {
	key := obs.Key()
	trigger := canonicalJSON(obs.TriggerInput)

	e, ok := l.index[key]
	if !ok {
		e = &Entry{
			Key:          key,
			Message:      obs.Message,
			HTTPStatus:   obs.HTTPStatus,
			FirstSeen:    obs.Timestamp,
			IsDocumented: obs.IsDocumented,
		}
		l.index[key] = e
		l.entries = append(l.entries, e)
	}

	e.Occurrences++
	if obs.Timestamp.After(e.LastSeen) {
		e.LastSeen = obs.Timestamp
	}
	if len(e.TriggerExamples) < MaxTriggerExamples && !containsJSON(e.TriggerExamples, trigger) {
		e.TriggerExamples = append(e.TriggerExamples, trigger)
	}
	return e.clone()
}

// Get returns the entry for key.
func (l *Ledger) Get(key Key) (Entry, bool) {
	e, ok := l.index[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns every entry in first-seen order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// EntriesFor returns the service's entries in first-seen order.
func (l *Ledger) EntriesFor(service string) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Service == service {
			out = append(out, e.clone())
		}
	}
	return out
}

// Services returns the services with at least one entry, in the order their
// first entry was created.
func (l *Ledger) Services() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range l.entries {
		if !seen[e.Service] {
			seen[e.Service] = true
			out = append(out, e.Service)
		}
	}
	return out
}

// Summary rolls up the service's entries. Coverage is the rounded
// documented percentage, or NoCoverage when there are no entries.
func (l *Ledger) Summary(service string) Summary {
	var s Summary
	for _, e := range l.entries {
		if e.Service != service {
			continue
		}
		s.Total++
		if e.IsDocumented {
			s.Documented++
		} else {
			s.Undocumented++
		}
	}
	s.Coverage = Coverage(s.Documented, s.Total)
	return s
}

// Coverage formats documented/total as a rounded percentage.
func Coverage(documented, total int) string {
	if total == 0 {
		return NoCoverage
	}
	pct := math.Round(float64(documented) / float64(total) * 100)
	return fmt.Sprintf("%d%%", int(pct))
}

// Annotate attaches a rename suggestion.
func (l *Ledger) Annotate(a Annotation) {
	l.annotations = append(l.annotations, a)
}

// Annotations returns rename suggestions in the order they were made.
func (l *Ledger) Annotations() []Annotation {
	return append([]Annotation(nil), l.annotations...)
}

// AnnotationsFor returns the service's rename suggestions.
func (l *Ledger) AnnotationsFor(service string) []Annotation {
	var out []Annotation
	for _, a := range l.annotations {
		if a.Service == service {
			out = append(out, a)
		}
	}
	return out
}

// canonicalJSON re-encodes raw so structurally equal inputs compare equal.
// encoding/json sorts map keys, which gives a stable form for objects.
// Input that is not valid JSON is kept as a JSON string.
func canonicalJSON(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		quoted, _ := json.Marshal(string(trimmed))
		return quoted
	}
	out, err := json.Marshal(v)
	if err != nil {
		return append(json.RawMessage(nil), trimmed...)
	}
	return out
}

func containsJSON(list []json.RawMessage, v json.RawMessage) bool {
	for _, item := range list {
		if bytes.Equal(item, v) {
			return true
		}
	}
	return false
}
