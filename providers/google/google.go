// Package google provides a chainz Provider for the Gemini generateContent API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/chainz"
)

// ErrRateLimited is wrapped by errors for HTTP 429 responses.
var ErrRateLimited = errors.New("rate limit exceeded")

// Provider implements chainz.Provider for Google Gemini.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Gemini provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gemini-2.0-flash", "gemini-2.0-pro-exp"
	BaseURL string        // Optional, defaults to "https://generativelanguage.googleapis.com/v1beta"
	Timeout time.Duration // Optional, zero means no timeout
	Name    string        // Optional, defaults to "gemini"
}

// New creates a new Gemini provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.Name == "" {
		config.Name = "gemini"
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		name:    config.Name,
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

// Call sends messages to Gemini and returns the response with usage stats.
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
	var contents []content
	for _, msg := range messages {
		if msg.Role == chainz.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		role := msg.Role
		// Gemini calls the assistant "model".
		if role == chainz.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: msg.Content}},
		})
	}

	requestBody := generateContentRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			Temperature: temperature,
		},
	}
	if len(systemParts) > 0 {
		requestBody.SystemInstruction = &content{
			Parts: []part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, chainz.ProviderCallFailed,
			chainz.ProviderKey.Field(p.name),
			chainz.ModelKey.Field(model),
			chainz.ErrorKey.Field(redact(err.Error(), p.apiKey)),
			chainz.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)
		return nil, fmt.Errorf("request failed: %s", redact(err.Error(), p.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(ctx, model, resp.StatusCode, body, time.Since(startTime))
	}

	var generateResp generateContentResponse
	if err := json.Unmarshal(body, &generateResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(generateResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := generateResp.Candidates[0]
	var texts []string
	for _, pt := range candidate.Content.Parts {
		if pt.Text != "" {
			texts = append(texts, pt.Text)
		}
	}
	textContent := strings.Join(texts, "")
	if textContent == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	usage := chainz.TokenUsage{
		Prompt:     generateResp.UsageMetadata.PromptTokenCount,
		Completion: generateResp.UsageMetadata.CandidatesTokenCount,
		Total:      generateResp.UsageMetadata.TotalTokenCount,
	}
	reported := generateResp.ModelVersion
	if reported == "" {
		reported = model
	}

	fields := []capitan.Field{
		chainz.ProviderKey.Field(p.name),
		chainz.ModelKey.Field(reported),
		chainz.PromptTokensKey.Field(usage.Prompt),
		chainz.CompletionTokensKey.Field(usage.Completion),
		chainz.TotalTokensKey.Field(usage.Total),
		chainz.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		chainz.HTTPStatusCodeKey.Field(resp.StatusCode),
	}
	if generateResp.ResponseID != "" {
		fields = append(fields, chainz.ResponseIDKey.Field(generateResp.ResponseID))
	}
	if candidate.FinishReason != "" {
		fields = append(fields, chainz.ResponseFinishReasonKey.Field(candidate.FinishReason))
	}
	capitan.Info(ctx, chainz.ProviderCallCompleted, fields...)

	return &chainz.ProviderResponse{
		Content: textContent,
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
			chainz.APIErrorTypeKey.Field(errorResp.Error.Status),
		)
		capitan.Error(ctx, chainz.ProviderCallFailed, fields...)

		if status == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, errorResp.Error.Message)
		}
		return fmt.Errorf("gemini error (%d): %s", status, errorResp.Error.Message)
	}

	fields = append(fields, chainz.ErrorKey.Field(fmt.Sprintf("status %d", status)))
	capitan.Error(ctx, chainz.ProviderCallFailed, fields...)
	if status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return fmt.Errorf("gemini error: status %d", status)
}

// redact keeps the API key out of transport errors, which echo the request URL.
func redact(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(key), "REDACTED")
}

// Request/Response types for the Gemini API

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
	ResponseID    string        `json:"responseId"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
	Index        int     `json:"index"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var _ chainz.ModelCaller = (*Provider)(nil)
