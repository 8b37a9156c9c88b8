package chainz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// ModelResponse is the result of a single model call.
type ModelResponse struct {
	Text      string     // Generated text content
	ModelID   string     // Model that produced the text
	Provider  string     // Provider name
	RequestID string     // Identifier shared with the emitted hooks
	Usage     TokenUsage // Token usage reported by the provider
}

// ChainLink wraps one templated prompt and one model invocation.
// The provider is shared, not owned; links hold no state between invocations.
type ChainLink struct {
	name        string
	step        *PromptStep
	provider    Provider
	model       string
	system      string
	temperature float32
	pipeline    pipz.Chainable[*LinkRequest]
}

// NewLink creates a link that renders step and sends it to provider.
// Options wrap the provider call with pipz reliability features.
func NewLink(name string, step *PromptStep, provider Provider, opts ...Option) (*ChainLink, error) {
	if step == nil {
		return nil, fmt.Errorf("link %q: prompt step is required", name)
	}
	if provider == nil {
		return nil, fmt.Errorf("link %q: provider is required", name)
	}

	pipeline := NewTerminal(provider)
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}

	return &ChainLink{
		name:        name,
		step:        step,
		provider:    provider,
		temperature: DefaultTemperatureCreative,
		pipeline:    pipeline,
	}, nil
}

// TerminalID identifies the processor that sends a link's request to its provider.
var TerminalID = pipz.NewIdentity("llm-call", "Sends the rendered prompt to the provider")

// NewTerminal creates the processor that calls the provider with history plus the prompt.
func NewTerminal(provider Provider) pipz.Chainable[*LinkRequest] {
	return pipz.Apply(TerminalID, func(ctx context.Context, req *LinkRequest) (*LinkRequest, error) {
		messages := make([]Message, len(req.Messages)+1)
		copy(messages, req.Messages)
		messages[len(messages)-1] = Message{
			Role:    RoleUser,
			Content: req.Prompt,
		}

		resp, err := callProvider(ctx, provider, req.Model, messages, req.Temperature)
		if err != nil {
			req.Error = err
			return req, err
		}
		if resp.Content == "" {
			req.Error = ErrNoResponse
			return req, ErrNoResponse
		}
		req.Error = nil
		req.Response = resp.Content
		req.ResponseModel = resp.Model
		req.Usage = &resp.Usage
		return req, nil
	})
}

// callProvider sends messages to the provider, selecting model when one is named.
func callProvider(ctx context.Context, provider Provider, model string, messages []Message, temperature float32) (*ProviderResponse, error) {
	if model == "" {
		return provider.Call(ctx, messages, temperature)
	}
	mc, ok := provider.(ModelCaller)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot call %q", ErrModelUnsupported, provider.Name(), model)
	}
	return mc.CallModel(ctx, model, messages, temperature)
}

// WithTemperature sets the temperature used for this link's calls.
// An explicit 0 is kept as TemperatureZero rather than falling back to the default.
func (l *ChainLink) WithTemperature(temperature float32) *ChainLink {
	if temperature == 0 {
		temperature = TemperatureZero
	}
	l.temperature = temperature
	return l
}

// WithModel selects the model the provider is asked to use for this link.
// The provider must implement ModelCaller.
func (l *ChainLink) WithModel(model string) *ChainLink {
	l.model = model
	return l
}

// WithSystem prepends a system message to every call.
func (l *ChainLink) WithSystem(system string) *ChainLink {
	l.system = system
	return l
}

// Name returns the link name.
func (l *ChainLink) Name() string {
	return l.name
}

// Step returns the link's prompt step.
func (l *ChainLink) Step() *PromptStep {
	return l.step
}

// Temperature returns the temperature applied to calls.
func (l *ChainLink) Temperature() float32 {
	return resolveTemperature(l.temperature, DefaultTemperatureCreative)
}

// GetPipeline returns the internal pipeline for composition.
// Implements PipelineProvider.
func (l *ChainLink) GetPipeline() pipz.Chainable[*LinkRequest] {
	return l.pipeline
}

// Invoke renders the prompt against binding and sends it as a single user message.
// A missing variable fails before any network call.
func (l *ChainLink) Invoke(ctx context.Context, binding Binding) (ModelResponse, error) {
	return l.InvokeWithSession(ctx, nil, binding)
}

// InvokeWithSession behaves like Invoke but sends the session history ahead of the prompt.
// The session is only updated after a successful response.
func (l *ChainLink) InvokeWithSession(ctx context.Context, session *Session, binding Binding) (ModelResponse, error) {
	prompt, err := l.step.Render(binding)
	if err != nil {
		return ModelResponse{}, err
	}

	var history []Message
	var sessionID string
	if session != nil {
		history = session.Messages()
		sessionID = session.ID()
	}

	resp, err := l.send(ctx, history, sessionID, prompt)
	if err != nil {
		return ModelResponse{}, err
	}

	if session != nil {
		session.Append(RoleUser, prompt)
		session.Append(RoleAssistant, resp.Text)
		session.SetUsage(&resp.Usage)
	}
	return resp, nil
}

// send issues one provider call with history ahead of the prompt.
func (l *ChainLink) send(ctx context.Context, history []Message, sessionID, prompt string) (ModelResponse, error) {
	temperature := l.Temperature()
	requestID := uuid.New().String()
	providerName := l.provider.Name()

	messages := make([]Message, 0, len(history)+1)
	if l.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: l.system})
	}
	messages = append(messages, history...)

	request := &LinkRequest{
		Prompt:       prompt,
		Temperature:  temperature,
		SessionID:    sessionID,
		Messages:     messages,
		RequestID:    requestID,
		LinkName:     l.name,
		ProviderName: providerName,
		Model:        l.model,
	}

	stage := stageFields(ctx)

	capitan.Info(ctx, LinkStarted, append([]capitan.Field{
		RequestIDKey.Field(requestID),
		SessionIDKey.Field(sessionID),
		LinkKey.Field(l.name),
		ProviderKey.Field(providerName),
		ModelKey.Field(l.model),
		InputKey.Field(prompt),
		TemperatureKey.Field(float64(temperature)),
	}, stage...)...)

	processed, err := l.pipeline.Process(ctx, request)
	if err != nil {
		cause := err
		if !errors.Is(err, context.DeadlineExceeded) && request.Error != nil && errors.Is(err, request.Error) {
			cause = request.Error
		}
		capitan.Error(ctx, LinkFailed, append([]capitan.Field{
			RequestIDKey.Field(requestID),
			LinkKey.Field(l.name),
			ProviderKey.Field(providerName),
			ErrorKey.Field(cause.Error()),
			ErrorTypeKey.Field("model_invocation"),
		}, stage...)...)
		return ModelResponse{}, &ModelInvocationError{
			Link:     l.name,
			Provider: providerName,
			Model:    l.model,
			Err:      cause,
		}
	}

	resp := ModelResponse{
		Text:      processed.Response,
		ModelID:   l.modelID(processed.ResponseModel),
		Provider:  providerName,
		RequestID: requestID,
	}
	if processed.Usage != nil {
		resp.Usage = *processed.Usage
	}

	capitan.Info(ctx, LinkCompleted, append([]capitan.Field{
		RequestIDKey.Field(requestID),
		LinkKey.Field(l.name),
		ProviderKey.Field(providerName),
		ModelKey.Field(resp.ModelID),
		OutputKey.Field(resp.Text),
	}, stage...)...)

	return resp, nil
}

// modelID picks the provider-reported model, then the requested model, then the provider name.
func (l *ChainLink) modelID(reported string) string {
	switch {
	case reported != "":
		return reported
	case l.model != "":
		return l.model
	default:
		return l.provider.Name()
	}
}
