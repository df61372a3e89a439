package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/planner"
	"github.com/randalmurphal/errscout/pkg/errscout/probe"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// Tools is the five-operation surface a planner drives. Every method
// returns planner-facing text; problems with the request itself come back
// as "Usage error: ..." text rather than Go errors.
type Tools struct {
	catalog  *catalog.Catalog
	executor *probe.Executor
	now      func() time.Time
}

// ToolsOption configures Tools.
type ToolsOption func(*Tools)

// WithAnnotationClock sets the time source for rename annotations.
func WithAnnotationClock(now func() time.Time) ToolsOption {
	return func(t *Tools) {
		t.now = now
	}
}

// NewTools binds the tool surface to a catalog and an executor. The ledger
// is the executor's.
func NewTools(cat *catalog.Catalog, executor *probe.Executor, opts ...ToolsOption) *Tools {
	t := &Tools{catalog: cat, executor: executor, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ledger returns the ledger the tools record into.
func (t *Tools) Ledger() *ledger.Ledger {
	return t.executor.Ledger()
}

// ListServices lists every service with its operation count.
func (t *Tools) ListServices() string {
	services := t.catalog.Services()
	if len(services) == 0 {
		return "No services are registered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Services (%d):\n", len(services))
	for _, s := range services {
		fmt.Fprintf(&b, "- %s: %s (%d operations)\n", s.Name, s.Description, s.Operations)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ListOperations lists a service's operations.
func (t *Tools) ListOperations(service string) string {
	ops, err := t.catalog.Operations(service)
	if err != nil {
		return usage("%v. Available services: %s", err, t.serviceNames())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s operations (%d):\n", service, len(ops))
	for _, op := range ops {
		fmt.Fprintf(&b, "- %s: %s %s\n", op.Name, op.Method, op.Path)
		if op.Summary != "" {
			fmt.Fprintf(&b, "    %s\n", op.Summary)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// DescribeOperation renders an operation's parameters, documented errors
// and what the ledger has seen for it so far.
func (t *Tools) DescribeOperation(service, operation string) string {
	text, err := t.catalog.Describe(service, operation)
	if err != nil {
		return usage("%v", err)
	}

	var b strings.Builder
	b.WriteString(text)
	if spec, err := t.catalog.Spec(service, operation); err == nil {
		writeKnownCodes(&b, spec.ExpectedCategories)
	}

	var observed []ledger.Entry
	for _, e := range t.Ledger().EntriesFor(service) {
		if e.Operation == operation {
			observed = append(observed, e)
		}
	}
	if len(observed) == 0 {
		b.WriteString("Observed errors: (none yet)")
		return b.String()
	}
	b.WriteString("Observed errors:\n")
	for _, e := range observed {
		status := "documented"
		if !e.IsDocumented {
			status = "UNDOCUMENTED"
		}
		fmt.Fprintf(&b, "  %s code %d, %d occurrences, %s: %s\n",
			e.Category.Tag(), e.ProviderCode, e.Occurrences, status, e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Call probes an operation. input may be a JSON object, a JSON string
// holding one, or empty.
func (t *Tools) Call(ctx context.Context, service, operation string, input json.RawMessage) probe.Outcome {
	return t.executor.Probe(ctx, service, operation, normalizeInput(input))
}

// ReportRename records a suggestion that a tag is misapplied for an
// operation. Ledger entries are never changed.
func (t *Tools) ReportRename(args planner.RenameArgs) string {
	op, err := t.catalog.Lookup(args.Service, args.Operation)
	if err != nil {
		return usage("%v", err)
	}
	current := strings.TrimSpace(args.CurrentTag)
	suggested := strings.TrimSpace(args.SuggestedTag)
	switch {
	case current == "":
		return usage("currentTag is required")
	case suggested == "":
		return usage("suggestedTag is required")
	case current == suggested:
		return usage("suggestedTag is the same as currentTag %q", current)
	}

	t.Ledger().Annotate(ledger.Annotation{
		Service:      op.Service,
		Operation:    op.Name,
		CurrentTag:   current,
		SuggestedTag: suggested,
		Reason:       strings.TrimSpace(args.Reason),
		Timestamp:    t.now(),
	})

	text := fmt.Sprintf("Rename suggestion recorded for %s: %s -> %s. Recorded entries are unchanged.",
		op.Ref(), current, suggested)
	if !t.hasTag(op, current) {
		text += fmt.Sprintf("\nNote: no %s entries have been recorded for %s yet.", current, op.Ref())
	}
	if c, ok := taxonomy.ParseTag(suggested); ok && t.catalog.IsDocumented(op.Service, op.Name, c) {
		text += fmt.Sprintf("\nNote: %s is already documented for %s.", c.Tag(), op.Ref())
	}
	return text
}

// writeKnownCodes lists the provider codes the taxonomy maps to each
// documented category, skipping categories without codes.
func writeKnownCodes(b *strings.Builder, categories []taxonomy.Category) {
	var lines []string
	for _, c := range categories {
		codes := taxonomy.KnownCodes(c)
		if len(codes) == 0 {
			continue
		}
		parts := make([]string, len(codes))
		for i, code := range codes {
			parts[i] = strconv.Itoa(code)
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", c.Tag(), strings.Join(parts, ", ")))
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("Known provider codes:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
}

// Dispatch executes action and returns its text. Done actions are not
// dispatched; the session loop handles them.
func (t *Tools) Dispatch(ctx context.Context, action planner.Action) string {
	switch action.Tool {
	case planner.ToolListServices:
		return t.ListServices()

	case planner.ToolListOperations:
		var args planner.ServiceArgs
		if err := action.DecodeArgs(&args); err != nil {
			return usage("%v", err)
		}
		return t.ListOperations(args.Service)

	case planner.ToolDescribeOperation:
		var args planner.OperationArgs
		if err := action.DecodeArgs(&args); err != nil {
			return usage("%v", err)
		}
		return t.DescribeOperation(args.Service, args.Operation)

	case planner.ToolCallOperation:
		var args planner.CallArgs
		if err := action.DecodeArgs(&args); err != nil {
			return usage("%v", err)
		}
		return t.Call(ctx, args.Service, args.Operation, args.Input).Text

	case planner.ToolReportRename:
		var args planner.RenameArgs
		if err := action.DecodeArgs(&args); err != nil {
			return usage("%v", err)
		}
		return t.ReportRename(args)

	default:
		names := make([]string, 0, len(planner.Tools()))
		for _, tool := range planner.Tools() {
			names = append(names, string(tool))
		}
		return usage("unknown tool %q. Available tools: %s", action.Tool, strings.Join(names, ", "))
	}
}

func (t *Tools) serviceNames() string {
	var names []string
	for _, s := range t.catalog.Services() {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func (t *Tools) hasTag(op catalog.Operation, tag string) bool {
	for _, e := range t.Ledger().EntriesFor(op.Service) {
		if e.Operation == op.Name && e.Category.Tag() == tag {
			return true
		}
	}
	return false
}

// normalizeInput unwraps a JSON string so planners can send the input
// object either inline or as text.
func normalizeInput(input json.RawMessage) any {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return json.RawMessage(trimmed)
}

func usage(format string, args ...any) string {
	return "Usage error: " + fmt.Sprintf(format, args...)
}
