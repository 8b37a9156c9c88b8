// Package openai provides a chainz Provider backed by the official OpenAI Go SDK.
// It supports native function calling and implements chainz.ToolCaller.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/chainz"
)

// Provider implements chainz.Provider and chainz.ToolCaller for OpenAI-compatible APIs.
type Provider struct {
	client openai.Client
	model  string
	name   string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o-mini", "gpt-4o"
	BaseURL string        // Optional, for OpenAI-compatible endpoints
	Timeout time.Duration // Optional, zero means no timeout
	Name    string        // Optional, defaults to "openai"

	// Options are applied after the defaults above, e.g. Azure routing.
	Options []option.RequestOption
}

// New creates a new OpenAI provider. The SDK's own retries are disabled;
// retry policy is composed per link with chainz options.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")+"/"))
	}
	opts = append(opts, config.Options...)

	return &Provider{
		client: openai.NewClient(opts...),
		model:  config.Model,
		name:   config.Name,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

// Call sends messages to OpenAI and returns the response with usage stats.
func (p *Provider) Call(ctx context.Context, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	return p.CallModel(ctx, p.model, messages, temperature)
}

// CallModel behaves like Call against model instead of the configured one.
// For Azure the model is the deployment name.
func (p *Provider) CallModel(ctx context.Context, model string, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	if model == "" {
		model = p.model
	}
	completion, err := p.complete(ctx, model, messages, nil, temperature)
	if err != nil {
		return nil, err
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("no content in response")
	}
	return &chainz.ProviderResponse{
		Content: content,
		Model:   reportedModel(completion.Model, model),
		Usage:   usageOf(completion),
	}, nil
}

// CallWithTools offers tools to the model and returns any calls it proposes.
func (p *Provider) CallWithTools(ctx context.Context, messages []chainz.Message, tools []chainz.ToolSpec, temperature float32) (*chainz.ToolCallResponse, error) {
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}

	completion, err := p.complete(ctx, p.model, messages, params, temperature)
	if err != nil {
		return nil, err
	}

	msg := completion.Choices[0].Message
	calls := make([]chainz.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, chainz.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &chainz.ToolCallResponse{
		Content:   msg.Content,
		Model:     reportedModel(completion.Model, p.model),
		ToolCalls: calls,
		Usage:     usageOf(completion),
	}, nil
}

func (p *Provider) complete(ctx context.Context, model string, messages []chainz.Message, tools []openai.ChatCompletionToolParam, temperature float32) (*openai.ChatCompletion, error) {
	startTime := time.Now()

	capitan.Info(ctx, chainz.ProviderCallStarted,
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(model),
	)

	params := openai.ChatCompletionNewParams{
		Messages:    toParams(messages),
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(float64(temperature)),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	duration := time.Since(startTime)
	if err != nil {
		fields := []capitan.Field{
			chainz.ProviderKey.Field(p.name),
			chainz.ModelKey.Field(model),
			chainz.DurationMsKey.Field(int(duration.Milliseconds())),
		}

		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			fields = append(fields,
				chainz.HTTPStatusCodeKey.Field(apiErr.StatusCode),
				chainz.APIErrorTypeKey.Field(apiErr.Type),
				chainz.ErrorKey.Field(apiErr.Message),
			)
			capitan.Error(ctx, chainz.ProviderCallFailed, fields...)
			if apiErr.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("rate limit exceeded: %s", apiErr.Message)
			}
			return nil, fmt.Errorf("%s error (%d): %s", p.name, apiErr.StatusCode, apiErr.Message)
		}

		fields = append(fields, chainz.ErrorKey.Field(err.Error()))
		capitan.Error(ctx, chainz.ProviderCallFailed, fields...)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		capitan.Error(ctx, chainz.ProviderCallFailed,
			chainz.ProviderKey.Field(p.name),
			chainz.ModelKey.Field(model),
			chainz.ErrorKey.Field("no choices in response"),
		)
		return nil, fmt.Errorf("no choices in response")
	}

	usage := usageOf(completion)
	fields := []capitan.Field{
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(reportedModel(completion.Model, model)),
		chainz.PromptTokensKey.Field(usage.Prompt),
		chainz.CompletionTokensKey.Field(usage.Completion),
		chainz.TotalTokensKey.Field(usage.Total),
		chainz.DurationMsKey.Field(int(duration.Milliseconds())),
		chainz.ResponseIDKey.Field(completion.ID),
	}
	if reason := string(completion.Choices[0].FinishReason); reason != "" {
		fields = append(fields, chainz.ResponseFinishReasonKey.Field(reason))
	}
	capitan.Info(ctx, chainz.ProviderCallCompleted, fields...)

	return completion, nil
}

func reportedModel(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}

func toParams(messages []chainz.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chainz.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chainz.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func usageOf(c *openai.ChatCompletion) chainz.TokenUsage {
	return chainz.TokenUsage{
		Prompt:     int(c.Usage.PromptTokens),
		Completion: int(c.Usage.CompletionTokens),
		Total:      int(c.Usage.TotalTokens),
	}
}

var (
	_ chainz.ModelCaller = (*Provider)(nil)
	_ chainz.ToolCaller  = (*Provider)(nil)
)
