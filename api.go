// Package chainz wires LLM providers into prompt chains and tool-routing flows.
//
// Chainz keeps the moving parts small and explicit. A PromptStep renders a template
// against a Binding, a ChainLink sends the rendered text to one provider, a Pipeline
// runs links strictly in order while mapping each response into the next Binding,
// and a ToolRouter decides whether a single tool should run before the final answer:
//
//   - PromptStep: "{name}" templates with declared variables
//   - ChainLink: one templated prompt plus one model call
//   - Pipeline: ordered links, each stage may target a different provider
//   - ToolRouter: keyword or function-calling tool selection, one tool per request
//
// Links accept the same composable reliability options as any pipz pipeline (retry,
// timeout, circuit breaker, rate limiting) and every step emits capitan hooks.
//
// Basic usage:
//
//	provider := openai.New(openai.Config{APIKey: key, Model: "gpt-4o-mini"})
//	idea, _ := chainz.NewLink("idea", chainz.MustPromptStep("Give me a startup idea for {product}."), provider)
//	slogan, _ := chainz.NewLink("slogan", chainz.MustPromptStep("Create a slogan for: {idea}"), provider)
//	pipeline := chainz.NewPipeline("startup").
//	    Then("idea", idea, chainz.MapTo("idea")).
//	    Then("slogan", slogan, nil)
//	resp, _ := pipeline.Run(ctx, chainz.Binding{"product": "self-driving cars"})
//	fmt.Println(resp.Text)
package chainz

import (
	"context"
	"fmt"
)

// Provider defines the interface for LLM providers.
// Providers accept conversation messages and return responses with usage stats.
type Provider interface {
	// Call sends messages to the LLM and returns the response with usage stats.
	// Messages should be in chronological order (oldest first).
	Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic")
	Name() string
}

// ToolCaller is implemented by providers with native function calling.
// The model may propose tool calls instead of (or alongside) text content.
type ToolCaller interface {
	Provider
	CallWithTools(ctx context.Context, messages []Message, tools []ToolSpec, temperature float32) (*ToolCallResponse, error)
}

// ModelCaller is implemented by providers that can target a model other than
// their configured default on a single call.
type ModelCaller interface {
	Provider
	CallModel(ctx context.Context, model string, messages []Message, temperature float32) (*ProviderResponse, error)
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int // Tokens used by the prompt/messages
	Completion int // Tokens used by the completion/response
	Total      int // Total tokens used
}

// ProviderResponse contains the response from an LLM provider.
type ProviderResponse struct {
	Content string     // The text response content
	Model   string     // Model that produced the response, when the API reports it
	Usage   TokenUsage // Token usage statistics
}

// ToolSpec describes a tool to a function-calling model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object for the arguments
}

// ToolCall is a model's proposal to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // Raw JSON arguments as returned by the model
}

// ToolCallResponse is the result of a function-calling round trip.
type ToolCallResponse struct {
	Content   string
	Model     string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // RoleUser, RoleAssistant, or RoleSystem
	Content string // The message content
}

// Role constants for message types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Temperature constants.
// Temperature controls the randomness of responses: 0.0 is most deterministic, 1.0 most varied.
const (
	// TemperatureUnset indicates that no temperature has been explicitly set.
	// A zero-value float32 (0.0) in a struct literal is also treated as unset;
	// the WithTemperature setters map an explicit 0 to TemperatureZero.
	TemperatureUnset float32 = -1

	// TemperatureZero provides an explicitly near-zero temperature for maximum determinism.
	// WithTemperature(0) stores this value.
	TemperatureZero float32 = 0.0001

	// DefaultTemperatureDeterministic is used for tool-selection decisions.
	DefaultTemperatureDeterministic float32 = 0.1

	// DefaultTemperatureBalanced is used for tool follow-up answers.
	DefaultTemperatureBalanced float32 = 0.3

	// DefaultTemperatureCreative is used for chain links producing free text.
	DefaultTemperatureCreative float32 = 0.7
)

// ValidateTemperature reports whether t is usable as a temperature.
// TemperatureUnset and 0 are accepted and mean "use the default".
func ValidateTemperature(t float32) error {
	if t == TemperatureUnset || t == 0 {
		return nil
	}
	if t < 0 || t > 1 {
		return fmt.Errorf("temperature must be within 0.0-1.0, got %v", t)
	}
	return nil
}

// resolveTemperature falls back to def when t is unset.
func resolveTemperature(t, def float32) float32 {
	if t == TemperatureUnset || t == 0 {
		return def
	}
	return t
}

// LinkRequest flows through a link's pipz pipeline.
// It contains the rendered prompt, parameters, session history, and response data.
type LinkRequest struct {
	// Input fields
	Prompt      string  // Rendered prompt text
	Temperature float32 // Temperature parameter for response generation

	// Session fields
	SessionID string    // ID of the conversation session, empty when none
	Messages  []Message // Message history sent ahead of the prompt

	// Metadata fields
	RequestID    string // Unique identifier for this request
	LinkName     string // Name of the link issuing the request
	ProviderName string // Name of the provider being used
	Model        string // Model requested from the provider, empty for its default

	// Output fields (populated by pipeline)
	Response      string      // Raw text response from provider
	ResponseModel string      // Model reported by the provider
	Usage         *TokenUsage // Token usage from provider response
	Error         error       // Last provider error seen by the terminal stage
}
