package chainz

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider simulates an LLM for tests and offline examples.
// It echoes a deterministic reply derived from the last user message.
type MockProvider struct {
	name      string
	available bool
	mu        sync.Mutex
	calls     []MockCall
}

// MockCall records one call made to a mock.
type MockCall struct {
	Messages    []Message
	Temperature float32
	Model       string // Model requested through CallModel, empty for Call
}

// Prompt returns the content of the last message of the call.
func (c MockCall) Prompt() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// NewMockProvider creates a mock provider named "mock".
func NewMockProvider() *MockProvider {
	return NewMockProviderWithName("mock")
}

// NewMockProviderWithName creates a mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	return &MockProvider{
		name:      name,
		available: true,
	}
}

// Call returns "Mock response to: <prompt>".
func (m *MockProvider) Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error) {
	return m.CallModel(ctx, "", messages, temperature)
}

// CallModel implements ModelCaller. The reply reports model when one is given.
func (m *MockProvider) CallModel(_ context.Context, model string, messages []Message, temperature float32) (*ProviderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Messages: cloneMessages(messages), Temperature: temperature, Model: model})

	if !m.available {
		return nil, fmt.Errorf("provider %s is unavailable", m.name)
	}
	if model == "" {
		model = m.name + "-model"
	}
	prompt := MockCall{Messages: messages}.Prompt()
	return &ProviderResponse{
		Content: "Mock response to: " + firstLine(prompt),
		Model:   model,
		Usage:   estimateUsage(messages, prompt),
	}, nil
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// SetAvailable sets the availability status for simulating failures.
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Calls returns the calls made so far.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// NewMockProviderWithResponse creates a mock that always returns response.
func NewMockProviderWithResponse(response string) Provider {
	return NewMockProviderWithCallback(func(string, float32) (string, error) {
		return response, nil
	})
}

// NewMockProviderWithCallback creates a mock that generates replies from the last prompt.
func NewMockProviderWithCallback(callback func(prompt string, temperature float32) (string, error)) Provider {
	return &mockProviderCallback{callback: callback}
}

// NewFailingMockProvider creates a mock whose every call fails with err.
func NewFailingMockProvider(err error) Provider {
	return NewMockProviderWithCallback(func(string, float32) (string, error) {
		return "", err
	})
}

type mockProviderCallback struct {
	callback func(string, float32) (string, error)
}

func (m *mockProviderCallback) Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error) {
	return m.CallModel(ctx, "", messages, temperature)
}

func (m *mockProviderCallback) CallModel(_ context.Context, model string, messages []Message, temperature float32) (*ProviderResponse, error) {
	prompt := MockCall{Messages: messages}.Prompt()
	content, err := m.callback(prompt, temperature)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "mock-model"
	}
	return &ProviderResponse{
		Content: content,
		Model:   model,
		Usage:   estimateUsage(messages, content),
	}, nil
}

func (*mockProviderCallback) Name() string {
	return "mock"
}

// MockToolCaller is a mock with native function calling. The script maps a
// request substring to the tool call the mock proposes; otherwise it answers in text.
type MockToolCaller struct {
	*MockProvider
	script map[string]ToolCall
	order  []string
}

// NewMockToolCaller creates a function-calling mock.
func NewMockToolCaller(name string) *MockToolCaller {
	return &MockToolCaller{
		MockProvider: NewMockProviderWithName(name),
		script:       make(map[string]ToolCall),
	}
}

// OnRequest proposes call whenever the request contains trigger. Triggers are checked
// in the order they were added.
func (m *MockToolCaller) OnRequest(trigger string, call ToolCall) *MockToolCaller {
	if _, ok := m.script[trigger]; !ok {
		m.order = append(m.order, trigger)
	}
	m.script[trigger] = call
	return m
}

// CallWithTools implements ToolCaller.
func (m *MockToolCaller) CallWithTools(ctx context.Context, messages []Message, tools []ToolSpec, temperature float32) (*ToolCallResponse, error) {
	resp, err := m.Call(ctx, messages, temperature)
	if err != nil {
		return nil, err
	}

	prompt := strings.ToLower(MockCall{Messages: messages}.Prompt())
	for _, trigger := range m.order {
		if strings.Contains(prompt, strings.ToLower(trigger)) {
			call := m.script[trigger]
			if call.ID == "" {
				call.ID = "call_" + call.Name
			}
			return &ToolCallResponse{
				Model:     resp.Model,
				ToolCalls: []ToolCall{call},
				Usage:     resp.Usage,
			}, nil
		}
	}
	return &ToolCallResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

func cloneMessages(messages []Message) []Message {
	return append([]Message(nil), messages...)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// estimateUsage approximates tokens as four characters each.
func estimateUsage(messages []Message, completion string) TokenUsage {
	prompt := 0
	for _, m := range messages {
		prompt += len(m.Content) / 4
	}
	done := len(completion) / 4
	return TokenUsage{Prompt: prompt, Completion: done, Total: prompt + done}
}

var (
	_ ModelCaller = (*MockProvider)(nil)
	_ ModelCaller = (*mockProviderCallback)(nil)
	_ ToolCaller  = (*MockToolCaller)(nil)
)
