package chainz

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/zoobzio/capitan"
)

// DecisionRequest is what a Policy sees when deciding on a tool.
type DecisionRequest struct {
	Request     string
	Tools       *Toolset
	Provider    Provider
	History     []Message
	Temperature float32

	// Answer sends the raw request through the router's answer call.
	Answer func(ctx context.Context) (ModelResponse, error)
	// Ask sends an arbitrary prompt at the decision temperature.
	Ask func(ctx context.Context, prompt string) (ModelResponse, error)
}

// Decision is a policy's verdict. Tool is empty for NO_TOOL.
// Answer, when set, is returned verbatim if no tool runs.
type Decision struct {
	Tool     string
	Argument string
	Answer   *ModelResponse
}

// Policy selects zero or one tool for a request.
type Policy interface {
	Name() string
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

// MatchMode controls how a tool's triggers are combined.
type MatchMode int

const (
	// MatchAny selects a tool when any trigger occurs in the request.
	MatchAny MatchMode = iota
	// MatchAll selects a tool only when every trigger occurs.
	MatchAll
)

// String renders the mode for logs.
func (m MatchMode) String() string {
	switch m {
	case MatchAll:
		return "all"
	case MatchAny:
		return "any"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// KeywordPolicy selects the first tool, in registration order, whose triggers occur in
// the request as case-insensitive substrings. The raw request is always answered first
// and that answer is returned when nothing matches.
type KeywordPolicy struct {
	Mode MatchMode
}

// NewKeywordPolicy creates a keyword policy with the given match mode.
func NewKeywordPolicy(mode MatchMode) *KeywordPolicy {
	return &KeywordPolicy{Mode: mode}
}

// Name implements Policy.
func (*KeywordPolicy) Name() string {
	return "keyword"
}

// Decide implements Policy.
func (p *KeywordPolicy) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	var decision Decision
	if req.Answer != nil {
		first, err := req.Answer(ctx)
		if err != nil {
			return decision, err
		}
		decision.Answer = &first
	}

	if tool, ok := p.Match(req.Request, req.Tools); ok {
		decision.Tool = tool.Name
		decision.Argument = req.Request
	}
	return decision, nil
}

// Match returns the first tool whose triggers fire for request.
func (p *KeywordPolicy) Match(request string, tools *Toolset) (Tool, bool) {
	if tools == nil {
		return Tool{}, false
	}
	text := strings.ToLower(request)
	for _, t := range tools.All() {
		if p.matches(text, t.Triggers) {
			return t, true
		}
	}
	return Tool{}, false
}

func (p *KeywordPolicy) matches(text string, triggers []string) bool {
	if len(triggers) == 0 {
		return false
	}
	for _, trigger := range triggers {
		hit := strings.Contains(text, strings.ToLower(trigger))
		switch {
		case p.Mode == MatchAll && !hit:
			return false
		case p.Mode != MatchAll && hit:
			return true
		}
	}
	return p.Mode == MatchAll
}

// decisionTemplate asks a model without native function calling to pick a tool.
const decisionTemplate = `You can call at most one of the following tools:
{tools}

Each tool takes a single argument matching this schema:
{schema}

User request: {request}

Respond with JSON only: {{"tool": "<tool name or none>", "argument": "<input for the tool>", "answer": "<your reply if no tool is needed>"}}`

var decisionStep = MustPromptStep(decisionTemplate)

// FunctionCallingPolicy lets the model choose the tool. Providers implementing ToolCaller
// use native function calling; others get a prompted JSON decision.
// Only the first proposed call is honoured and unknown names mean no tool.
type FunctionCallingPolicy struct{}

// NewFunctionCallingPolicy creates a model-driven policy.
func NewFunctionCallingPolicy() *FunctionCallingPolicy {
	return &FunctionCallingPolicy{}
}

// Name implements Policy.
func (*FunctionCallingPolicy) Name() string {
	return "function-calling"
}

// Decide implements Policy.
func (p *FunctionCallingPolicy) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	if caller, ok := req.Provider.(ToolCaller); ok {
		return p.native(ctx, caller, req)
	}
	return p.prompted(ctx, req)
}

func (*FunctionCallingPolicy) native(ctx context.Context, caller ToolCaller, req DecisionRequest) (Decision, error) {
	messages := make([]Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: RoleUser, Content: req.Request})

	resp, err := caller.CallWithTools(ctx, messages, req.Tools.Specs(), req.Temperature)
	if err != nil {
		capitan.Error(ctx, LinkFailed,
			LinkKey.Field("router.decision"),
			ProviderKey.Field(caller.Name()),
			ErrorKey.Field(err.Error()),
			ErrorTypeKey.Field("model_invocation"),
		)
		return Decision{}, &ModelInvocationError{Link: "router.decision", Provider: caller.Name(), Err: err}
	}

	answer := &ModelResponse{
		Text:     resp.Content,
		ModelID:  resp.Model,
		Provider: caller.Name(),
		Usage:    resp.Usage,
	}
	if answer.ModelID == "" {
		answer.ModelID = caller.Name()
	}

	decision := Decision{Answer: answer}
	if len(resp.ToolCalls) == 0 {
		if answer.Text == "" {
			decision.Answer = nil
		}
		return decision, nil
	}

	call := resp.ToolCalls[0]
	if _, ok := req.Tools.Get(call.Name); !ok {
		if answer.Text == "" {
			decision.Answer = nil
		}
		return decision, nil
	}
	decision.Tool = call.Name
	decision.Argument = toolArgument(call.Arguments)
	return decision, nil
}

func (*FunctionCallingPolicy) prompted(ctx context.Context, req DecisionRequest) (Decision, error) {
	if req.Ask == nil || req.Tools == nil || req.Tools.Len() == 0 {
		return Decision{}, nil
	}

	prompt, err := decisionStep.Render(Binding{
		"tools":   req.Tools.Describe(),
		"schema":  schemaString(toolArgsSchema()),
		"request": req.Request,
	})
	if err != nil {
		return Decision{}, err
	}

	resp, err := req.Ask(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}

	raw := extractJSONObject(resp.Text)
	if raw == "" || !gjson.Valid(raw) {
		return Decision{}, nil
	}

	parsed := gjson.Parse(raw)
	decision := Decision{}
	if answer := strings.TrimSpace(parsed.Get("answer").String()); answer != "" {
		r := resp
		r.Text = answer
		decision.Answer = &r
	}

	name := strings.TrimSpace(parsed.Get("tool").String())
	if name == "" || strings.EqualFold(name, "none") {
		return decision, nil
	}
	if _, ok := req.Tools.Get(name); !ok {
		return decision, nil
	}
	decision.Tool = name
	decision.Argument = strings.TrimSpace(parsed.Get("argument").String())
	return decision, nil
}

// toolArgument reads the "input" field of a JSON argument object,
// falling back to the raw text when it is not one.
func toolArgument(arguments string) string {
	if gjson.Valid(arguments) {
		if input := gjson.Get(arguments, "input"); input.Exists() {
			return input.String()
		}
	}
	return strings.TrimSpace(arguments)
}

// extractJSONObject trims anything outside the outermost braces, such as markdown fences.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

var (
	_ Policy = (*KeywordPolicy)(nil)
	_ Policy = (*FunctionCallingPolicy)(nil)
)
