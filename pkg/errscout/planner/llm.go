package planner

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/randalmurphal/errscout/pkg/errscout/llm"
)

// DefaultHistoryLimit is the number of recent turns shown to the model.
const DefaultHistoryLimit = 12

// maxOutcomeChars caps each outcome in the prompt.
const maxOutcomeChars = 1500

const systemPrompt = `You are probing a REST API to find error codes its documentation does not list.

Each turn you choose exactly one action. Reply with a single JSON object and nothing else.

Tools:
  {"tool":"list_services"}
  {"tool":"list_operations","args":{"service":"KV"}}
  {"tool":"describe_operation","args":{"service":"KV","operation":"getValue"}}
  {"tool":"call_operation","args":{"service":"KV","operation":"getValue","input":{"namespace_id":"x","key_name":"y"}}}
  {"tool":"report_rename","args":{"service":"KV","operation":"getValue","currentTag":"UnknownError","suggestedTag":"KeyTooLongError","reason":"..."}}

To stop:
  {"done":true,"reason":"why you are finished"}

Strategy: learn the operations, then call them with inputs likely to fail in
unusual ways: missing fields, wrong types, out-of-range values, nonexistent ids,
oversized strings. Prefer operations and inputs you have not tried. When an
UnknownError keeps the same provider code, suggest a clearer name with
report_rename. Never try to create real resources on purpose.`

const correction = `Your reply was not a valid action. Reply with exactly one JSON object using one of the listed tools, or {"done":true,"reason":"..."}.`

// LLM asks a language model for each action. An unparseable reply gets one
// corrective follow-up before Next fails.
type LLM struct {
	client       llm.Client
	model        string
	maxTokens    int
	historyLimit int
	system       string
	usage        llm.TokenUsage
}

// LLMOption configures an LLM planner.
type LLMOption func(*LLM)

// WithModel selects the model name passed to the client.
func WithModel(model string) LLMOption {
	return func(p *LLM) {
		p.model = model
	}
}

// WithMaxTokens bounds each completion.
func WithMaxTokens(n int) LLMOption {
	return func(p *LLM) {
		p.maxTokens = n
	}
}

// WithHistoryLimit sets how many recent turns the prompt carries.
func WithHistoryLimit(n int) LLMOption {
	return func(p *LLM) {
		if n > 0 {
			p.historyLimit = n
		}
	}
}

// WithSystemPrompt replaces the built-in instructions.
func WithSystemPrompt(prompt string) LLMOption {
	return func(p *LLM) {
		if prompt != "" {
			p.system = prompt
		}
	}
}

// NewLLM creates a model-driven planner.
func NewLLM(client llm.Client, opts ...LLMOption) *LLM {
	p := &LLM{
		client:       client,
		historyLimit: DefaultHistoryLimit,
		system:       systemPrompt,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Planner.
func (p *LLM) Name() string { return "llm" }

// Usage returns the tokens consumed so far.
func (p *LLM) Usage() llm.TokenUsage { return p.usage }

// Next implements Planner.
func (p *LLM) Next(ctx context.Context, view View) (Action, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: p.render(view)}}

	reply, err := p.complete(ctx, messages)
	if err != nil {
		return Action{}, err
	}
	a, perr := ParseAction(reply)
	if perr == nil {
		return a, nil
	}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: reply},
		llm.Message{Role: llm.RoleUser, Content: correction},
	)
	reply, err = p.complete(ctx, messages)
	if err != nil {
		return Action{}, err
	}
	a, perr = ParseAction(reply)
	if perr != nil {
		return Action{}, fmt.Errorf("llm planner: %w", perr)
	}
	return a, nil
}

func (p *LLM) complete(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.system,
		Messages:     messages,
		Model:        p.model,
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm planner: %w", err)
	}
	p.usage.Add(resp.Usage)
	return resp.Content, nil
}

func (p *LLM) render(view View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d of %d.\n", view.Round+1, view.MaxRounds)

	if view.Entries == 0 {
		b.WriteString("No errors recorded yet.\n")
	} else {
		fmt.Fprintf(&b, "Errors recorded: %d\n", view.Entries)
		for _, svc := range slices.Sorted(maps.Keys(view.Summaries)) {
			s := view.Summaries[svc]
			fmt.Fprintf(&b, "  %s: %d total, %d documented, %d undocumented, coverage %s\n",
				svc, s.Total, s.Documented, s.Undocumented, s.Coverage)
		}
	}

	history := view.History
	if len(history) > p.historyLimit {
		fmt.Fprintf(&b, "\n(%d earlier turns omitted)\n", len(history)-p.historyLimit)
		history = history[len(history)-p.historyLimit:]
	}
	if len(history) > 0 {
		b.WriteString("\nRecent turns:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "\n[%d] %s\n%s\n", t.Round+1, t.Action, clip(t.Outcome, maxOutcomeChars))
		}
	}

	b.WriteString("\nChoose the next action.")
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n... (clipped)"
}
