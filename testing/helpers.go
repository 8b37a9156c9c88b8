// Package testing provides providers and builders for testing chainz links, pipelines,
// and routers without a live model.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/chainz"
)

// Provider name constants for test helpers.
const (
	SequencedProviderName = "sequenced-mock"
	FailingProviderName   = "failing-mock"
)

// DecisionBuilder builds the JSON a model returns to a prompted tool decision.
type DecisionBuilder struct {
	data map[string]any
}

// NewDecisionBuilder creates a builder that selects no tool until WithTool is called.
func NewDecisionBuilder() *DecisionBuilder {
	return &DecisionBuilder{
		data: map[string]any{"tool": "none", "argument": "", "answer": ""},
	}
}

// WithTool sets the selected tool name.
func (b *DecisionBuilder) WithTool(name string) *DecisionBuilder {
	b.data["tool"] = name
	return b
}

// WithArgument sets the tool argument.
func (b *DecisionBuilder) WithArgument(argument string) *DecisionBuilder {
	b.data["argument"] = argument
	return b
}

// WithAnswer sets the direct reply used when no tool is needed.
func (b *DecisionBuilder) WithAnswer(answer string) *DecisionBuilder {
	b.data["answer"] = answer
	return b
}

// WithField sets an arbitrary field.
func (b *DecisionBuilder) WithField(key string, value any) *DecisionBuilder {
	b.data[key] = value
	return b
}

// Build returns the JSON string representation of the decision.
func (b *DecisionBuilder) Build() string {
	jsonBytes, err := json.Marshal(b.data)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

// Fenced wraps the decision in a markdown code fence, as chat models often do.
func (b *DecisionBuilder) Fenced() string {
	return "```json\n" + b.Build() + "\n```"
}

// EventText renders event fields in the layout chainz.ParseEvent reads.
func EventText(title, date, clock, description string) string {
	return fmt.Sprintf("Title: %s\nDate: %s\nTime: %s\nDescription: %s", title, date, clock, description)
}

// SequencedProvider returns responses in sequence.
// After all responses are exhausted, it returns the last response repeatedly.
type SequencedProvider struct {
	responses []string
	index     atomic.Int64
}

// NewSequencedProvider creates a provider that returns responses in order.
func NewSequencedProvider(responses ...string) *SequencedProvider {
	if len(responses) == 0 {
		responses = []string{"no responses configured"}
	}
	return &SequencedProvider{
		responses: responses,
	}
}

// Call returns the next response in sequence.
func (p *SequencedProvider) Call(_ context.Context, _ []chainz.Message, _ float32) (*chainz.ProviderResponse, error) {
	idx := p.index.Add(1) - 1
	if int(idx) >= len(p.responses) {
		idx = int64(len(p.responses) - 1)
	}

	return &chainz.ProviderResponse{
		Content: p.responses[idx],
		Model:   SequencedProviderName,
		Usage: chainz.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (*SequencedProvider) Name() string {
	return SequencedProviderName
}

// CallCount returns the number of calls made.
func (p *SequencedProvider) CallCount() int {
	return int(p.index.Load())
}

// Reset resets the call counter.
func (p *SequencedProvider) Reset() {
	p.index.Store(0)
}

// FailingProvider fails a specified number of times before succeeding.
type FailingProvider struct {
	failCount    int
	currentCount atomic.Int64
	successResp  string
	failError    string
}

// NewFailingProvider creates a provider that fails failCount times then succeeds.
func NewFailingProvider(failCount int) *FailingProvider {
	return &FailingProvider{
		failCount:   failCount,
		successResp: "recovered",
		failError:   "simulated provider failure",
	}
}

// WithSuccessResponse sets the response returned after failures are exhausted.
func (p *FailingProvider) WithSuccessResponse(response string) *FailingProvider {
	p.successResp = response
	return p
}

// WithFailError sets the error message for failures.
func (p *FailingProvider) WithFailError(errMsg string) *FailingProvider {
	p.failError = errMsg
	return p
}

// Call fails until failCount is reached, then succeeds.
func (p *FailingProvider) Call(_ context.Context, _ []chainz.Message, _ float32) (*chainz.ProviderResponse, error) {
	count := p.currentCount.Add(1)
	if int(count) <= p.failCount {
		return nil, fmt.Errorf("%s (attempt %d/%d)", p.failError, count, p.failCount)
	}

	return &chainz.ProviderResponse{
		Content: p.successResp,
		Usage: chainz.TokenUsage{
			Prompt:     100,
			Completion: 50,
			Total:      150,
		},
	}, nil
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return FailingProviderName
}

// CallCount returns the number of calls made.
func (p *FailingProvider) CallCount() int {
	return int(p.currentCount.Load())
}

// Reset resets the call counter.
func (p *FailingProvider) Reset() {
	p.currentCount.Store(0)
}

// RecordedCall represents a single call to a provider.
type RecordedCall struct {
	Messages    []chainz.Message
	Temperature float32
	Model       string // Set when the call went through CallModel
}

// Prompt returns the last message of the call, the rendered prompt for a link.
func (c RecordedCall) Prompt() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// CallRecorder wraps a provider and records all calls made to it.
type CallRecorder struct {
	provider chainz.Provider
	calls    []RecordedCall
	mu       sync.Mutex
}

// NewCallRecorder wraps a provider with call recording.
func NewCallRecorder(provider chainz.Provider) *CallRecorder {
	return &CallRecorder{
		provider: provider,
		calls:    make([]RecordedCall, 0),
	}
}

// Call delegates to the wrapped provider and records the call.
func (r *CallRecorder) Call(ctx context.Context, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	r.record(messages, temperature, "")
	return r.provider.Call(ctx, messages, temperature)
}

// CallModel records the call and delegates to the wrapped provider when it
// can select a model, failing with chainz.ErrModelUnsupported otherwise.
func (r *CallRecorder) CallModel(ctx context.Context, model string, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	r.record(messages, temperature, model)
	mc, ok := r.provider.(chainz.ModelCaller)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot call %q", chainz.ErrModelUnsupported, r.provider.Name(), model)
	}
	return mc.CallModel(ctx, model, messages, temperature)
}

func (r *CallRecorder) record(messages []chainz.Message, temperature float32, model string) {
	msgCopy := make([]chainz.Message, len(messages))
	copy(msgCopy, messages)

	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{
		Messages:    msgCopy,
		Temperature: temperature,
		Model:       model,
	})
	r.mu.Unlock()
}

// Name returns the wrapped provider's name.
func (r *CallRecorder) Name() string {
	return r.provider.Name()
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]RecordedCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Prompts returns the prompt of every recorded call, in order.
func (r *CallRecorder) Prompts() []string {
	calls := r.Calls()
	prompts := make([]string, len(calls))
	for i, c := range calls {
		prompts[i] = c.Prompt()
	}
	return prompts
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// LastCall returns the most recent call, or nil if no calls made.
func (r *CallRecorder) LastCall() *RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make([]RecordedCall, 0)
}

// LatencyProvider wraps a provider and adds artificial latency.
type LatencyProvider struct {
	provider chainz.Provider
	delay    time.Duration
}

// NewLatencyProvider wraps a provider with artificial delay.
// The delay is applied before each provider call and respects context cancellation.
func NewLatencyProvider(provider chainz.Provider, delay time.Duration) *LatencyProvider {
	return &LatencyProvider{
		provider: provider,
		delay:    delay,
	}
}

// Call adds latency then delegates to the wrapped provider.
func (p *LatencyProvider) Call(ctx context.Context, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.provider.Call(ctx, messages, temperature)
}

// Name returns the wrapped provider's name.
func (p *LatencyProvider) Name() string {
	return p.provider.Name()
}

// PrefixProvider answers by prompt prefix, so one provider can serve every stage of a
// pipeline or both calls of a router. Unmatched prompts get the fallback reply.
type PrefixProvider struct {
	name     string
	replies  []prefixReply
	fallback string
}

type prefixReply struct {
	prefix string
	reply  string
	err    error
}

// NewPrefixProvider creates a provider that answers fallback to unmatched prompts.
func NewPrefixProvider(name, fallback string) *PrefixProvider {
	return &PrefixProvider{name: name, fallback: fallback}
}

// On answers reply to prompts starting with prefix. Earlier registrations win.
func (p *PrefixProvider) On(prefix, reply string) *PrefixProvider {
	p.replies = append(p.replies, prefixReply{prefix: prefix, reply: reply})
	return p
}

// FailOn fails prompts starting with prefix with err.
func (p *PrefixProvider) FailOn(prefix string, err error) *PrefixProvider {
	p.replies = append(p.replies, prefixReply{prefix: prefix, err: err})
	return p
}

// Call implements chainz.Provider.
func (p *PrefixProvider) Call(_ context.Context, messages []chainz.Message, _ float32) (*chainz.ProviderResponse, error) {
	prompt := RecordedCall{Messages: messages}.Prompt()
	for _, r := range p.replies {
		if strings.HasPrefix(prompt, r.prefix) {
			if r.err != nil {
				return nil, r.err
			}
			return &chainz.ProviderResponse{Content: r.reply, Model: p.name + "-model"}, nil
		}
	}
	return &chainz.ProviderResponse{Content: p.fallback, Model: p.name + "-model"}, nil
}

// Name returns the provider identifier.
func (p *PrefixProvider) Name() string {
	return p.name
}

// UsageAccumulator tracks total token usage across multiple calls.
type UsageAccumulator struct {
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	totalTokens      atomic.Int64
	callCount        atomic.Int64
}

// NewUsageAccumulator creates a new usage accumulator.
func NewUsageAccumulator() *UsageAccumulator {
	return &UsageAccumulator{}
}

// Add accumulates usage from a session's last usage.
func (a *UsageAccumulator) Add(session *chainz.Session) {
	a.AddUsage(session.LastUsage())
}

// AddResponse accumulates usage reported on a model response.
func (a *UsageAccumulator) AddResponse(resp chainz.ModelResponse) {
	a.AddUsage(&resp.Usage)
}

// AddUsage accumulates usage directly.
func (a *UsageAccumulator) AddUsage(usage *chainz.TokenUsage) {
	if usage != nil {
		a.promptTokens.Add(int64(usage.Prompt))
		a.completionTokens.Add(int64(usage.Completion))
		a.totalTokens.Add(int64(usage.Total))
		a.callCount.Add(1)
	}
}

// PromptTokens returns total prompt tokens.
func (a *UsageAccumulator) PromptTokens() int {
	return int(a.promptTokens.Load())
}

// CompletionTokens returns total completion tokens.
func (a *UsageAccumulator) CompletionTokens() int {
	return int(a.completionTokens.Load())
}

// TotalTokens returns total tokens.
func (a *UsageAccumulator) TotalTokens() int {
	return int(a.totalTokens.Load())
}

// CallCount returns number of calls accumulated.
func (a *UsageAccumulator) CallCount() int {
	return int(a.callCount.Load())
}

// Reset clears all accumulated values.
func (a *UsageAccumulator) Reset() {
	a.promptTokens.Store(0)
	a.completionTokens.Store(0)
	a.totalTokens.Store(0)
	a.callCount.Store(0)
}

var (
	_ chainz.Provider = (*SequencedProvider)(nil)
	_ chainz.Provider = (*FailingProvider)(nil)
	_ chainz.Provider = (*CallRecorder)(nil)
	_ chainz.Provider = (*LatencyProvider)(nil)
	_ chainz.Provider = (*PrefixProvider)(nil)
)
