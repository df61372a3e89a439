package export

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
)

// Report renders a Markdown summary: a coverage table, then per service
// the undocumented discoveries first, the documented errors and any rename
// suggestions.
func Report(l *ledger.Ledger) string {
	var b strings.Builder
	b.WriteString("# Error discovery report\n\n")

	services := reportServices(l)
	if len(services) == 0 {
		b.WriteString("No errors were recorded.\n")
		return b.String()
	}

	b.WriteString("| Service | Errors | Documented | Undocumented | Coverage |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, svc := range services {
		s := l.Summary(svc)
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %s |\n", svc, s.Total, s.Documented, s.Undocumented, s.Coverage)
	}

	for _, svc := range services {
		fmt.Fprintf(&b, "\n## %s\n", svc)

		var documented, undocumented []ledger.Entry
		for _, e := range l.EntriesFor(svc) {
			if e.IsDocumented {
				documented = append(documented, e)
			} else {
				undocumented = append(undocumented, e)
			}
		}

		if len(undocumented) > 0 {
			b.WriteString("\n### Undocumented errors\n\n")
			for _, e := range undocumented {
				writeEntry(&b, e)
			}
		}
		if len(documented) > 0 {
			b.WriteString("\n### Documented errors\n\n")
			for _, e := range documented {
				writeEntry(&b, e)
			}
		}

		if anns := l.AnnotationsFor(svc); len(anns) > 0 {
			b.WriteString("\n### Rename suggestions\n\n")
			for _, a := range anns {
				fmt.Fprintf(&b, "- `%s.%s`: %s -> %s", a.Service, a.Operation, a.CurrentTag, a.SuggestedTag)
				if a.Reason != "" {
					fmt.Fprintf(&b, " (%s)", a.Reason)
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, e ledger.Entry) {
	fmt.Fprintf(b, "- `%s.%s` **%s** code %d", e.Service, e.Operation, e.Category.Tag(), e.ProviderCode)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(b, ", HTTP %d", e.HTTPStatus)
	}
	fmt.Fprintf(b, ", %d occurrences: %s\n", e.Occurrences, e.Message)
	for _, ex := range e.TriggerExamples {
		fmt.Fprintf(b, "  - trigger: `%s`\n", ex)
	}
}

// reportServices lists services with entries, then services that only
// have rename suggestions.
func reportServices(l *ledger.Ledger) []string {
	services := l.Services()
	seen := make(map[string]bool, len(services))
	for _, s := range services {
		seen[s] = true
	}
	for _, a := range l.Annotations() {
		if !seen[a.Service] {
			seen[a.Service] = true
			services = append(services, a.Service)
		}
	}
	return services
}
