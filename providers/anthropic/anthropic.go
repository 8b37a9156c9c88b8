// Package anthropic provides a chainz Provider for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/chainz"
)

// ErrRateLimited is wrapped by errors for HTTP 429 responses.
var ErrRateLimited = errors.New("rate limit exceeded")

// Provider implements chainz.Provider for the Anthropic API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	version    string
	maxTokens  int
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey    string
	Model     string        // e.g. "claude-3-7-sonnet-latest", "claude-3-5-haiku-latest"
	BaseURL   string        // Optional, defaults to "https://api.anthropic.com"
	Version   string        // Optional, defaults to "2023-06-01"
	MaxTokens int           // Optional, defaults to 4096
	Timeout   time.Duration // Optional, zero means no timeout
	Name      string        // Optional, defaults to "anthropic"
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-7-sonnet-latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.Version == "" {
		config.Version = "2023-06-01"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Name == "" {
		config.Name = "anthropic"
	}

	return &Provider{
		apiKey:    config.APIKey,
		model:     config.Model,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		version:   config.Version,
		maxTokens: config.MaxTokens,
		name:      config.Name,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
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

// Call sends messages to Anthropic and returns the response with usage stats.
// System messages are folded into the top-level system field.
func (p *Provider) Call(ctx context.Context, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	return p.CallModel(ctx, p.model, messages, temperature)
}

// CallModel behaves like Call against model instead of the configured one.
func (p *Provider) CallModel(ctx context.Context, model string, messages []chainz.Message, temperature float32) (*chainz.ProviderResponse, error) {
	if model == "" {
		model = p.model
	}
	startTime := time.Now()

	capitan.Info(ctx, chainz.ProviderCallStarted,
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(model),
	)

	var systemParts []string
	var apiMessages []message
	for _, msg := range messages {
		if msg.Role == chainz.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		apiMessages = append(apiMessages, message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	requestBody := messagesRequest{
		Model:       model,
		Messages:    apiMessages,
		MaxTokens:   p.maxTokens,
		Temperature: temperature,
	}
	if len(systemParts) > 0 {
		requestBody.System = strings.Join(systemParts, "\n\n")
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, chainz.ProviderCallFailed,
			chainz.ProviderKey.Field(p.name),
			chainz.ModelKey.Field(model),
			chainz.ErrorKey.Field(err.Error()),
			chainz.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(ctx, model, resp.StatusCode, body, time.Since(startTime))
	}

	var messagesResp messagesResponse
	if err := json.Unmarshal(body, &messagesResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var parts []string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	content := strings.Join(parts, "")
	if content == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	usage := chainz.TokenUsage{
		Prompt:     messagesResp.Usage.InputTokens,
		Completion: messagesResp.Usage.OutputTokens,
		Total:      messagesResp.Usage.InputTokens + messagesResp.Usage.OutputTokens,
	}

	fields := []capitan.Field{
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(messagesResp.Model),
		chainz.PromptTokensKey.Field(usage.Prompt),
		chainz.CompletionTokensKey.Field(usage.Completion),
		chainz.TotalTokensKey.Field(usage.Total),
		chainz.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		chainz.HTTPStatusCodeKey.Field(resp.StatusCode),
		chainz.ResponseIDKey.Field(messagesResp.ID),
	}
	if messagesResp.StopReason != "" {
		fields = append(fields, chainz.ResponseFinishReasonKey.Field(messagesResp.StopReason))
	}
	capitan.Info(ctx, chainz.ProviderCallCompleted, fields...)

	reported := messagesResp.Model
	if reported == "" {
		reported = model
	}
	return &chainz.ProviderResponse{
		Content: content,
		Model:   reported,
		Usage:   usage,
	}, nil
}

func (p *Provider) statusError(ctx context.Context, model string, status int, body []byte, duration time.Duration) error {
	fields := []capitan.Field{
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(model),
		chainz.HTTPStatusCodeKey.Field(status),
		chainz.DurationMsKey.Field(int(duration.Milliseconds())),
	}

	var errorResp errorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		fields = append(fields,
			chainz.ErrorKey.Field(errorResp.Error.Message),
			chainz.APIErrorTypeKey.Field(errorResp.Error.Type),
		)
		capitan.Error(ctx, chainz.ProviderCallFailed, fields...)

		if status == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, errorResp.Error.Message)
		}
		return fmt.Errorf("anthropic error (%d): %s", status, errorResp.Error.Message)
	}

	fields = append(fields, chainz.ErrorKey.Field(fmt.Sprintf("status %d", status)))
	capitan.Error(ctx, chainz.ProviderCallFailed, fields...)
	if status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return fmt.Errorf("anthropic error: status %d", status)
}

// Request/Response types for the Anthropic API

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ chainz.ModelCaller = (*Provider)(nil)
