package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

const tsHeader = "// Code generated by errscout. DO NOT EDIT.\n"

// TypeDefinitions renders the ledger as TypeScript discriminated unions:
// one union per operation with a {tag, code, message} variant per entry,
// and one union per service over its operations.
func TypeDefinitions(l *ledger.Ledger) string {
	var b strings.Builder
	b.WriteString(tsHeader)
	b.WriteString("\nexport type ErrorTag =\n")
	for i, c := range taxonomy.Categories {
		fmt.Fprintf(&b, "  | %s", tsString(c.Tag()))
		if i == len(taxonomy.Categories)-1 {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}

	for _, svc := range l.Services() {
		fmt.Fprintf(&b, "\n// %s\n", svc)

		var opOrder []string
		byOp := make(map[string][]ledger.Entry)
		for _, e := range l.EntriesFor(svc) {
			if _, ok := byOp[e.Operation]; !ok {
				opOrder = append(opOrder, e.Operation)
			}
			byOp[e.Operation] = append(byOp[e.Operation], e)
		}

		unions := make([]string, 0, len(opOrder))
		for _, op := range opOrder {
			name := typeName(svc, op) + "Error"
			unions = append(unions, name)

			fmt.Fprintf(&b, "\nexport type %s =\n", name)
			entries := byOp[op]
			for i, e := range entries {
				fmt.Fprintf(&b, "  | { tag: %s; code: %d; message: %s }",
					tsString(e.Category.Tag()), e.ProviderCode, tsString(e.Message))
				if i == len(entries)-1 {
					b.WriteString(";")
				}
				if !e.IsDocumented {
					b.WriteString(" // undocumented")
				}
				b.WriteString("\n")
			}
		}

		fmt.Fprintf(&b, "\nexport type %sError = %s;\n", typeName(svc), strings.Join(unions, " | "))
	}
	return b.String()
}

// typeName joins parts into an exported identifier: ("KV", "getValue")
// becomes "KVGetValue".
func typeName(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		upper := true
		for _, r := range part {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				upper = true
				continue
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

// tsString quotes s as a string literal. JSON string syntax is valid
// TypeScript.
func tsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
