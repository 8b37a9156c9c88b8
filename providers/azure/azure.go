// Package azure provides a chainz Provider for Azure OpenAI deployments. Requests go
// through the OpenAI SDK with Azure routing, so native function calling works as it
// does for OpenAI.
package azure

import (
	"strings"
	"time"

	azureopenai "github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/zoobzio/chainz/providers/openai"
)

// DefaultAPIVersion is the Azure OpenAI API version used when none is configured.
const DefaultAPIVersion = "2024-06-01"

// Config holds configuration for the Azure provider.
type Config struct {
	Endpoint   string        // https://{your-resource}.openai.azure.com
	APIKey     string        // Sent as the api-key header
	Deployment string        // Deployment name, used in place of a model name
	APIVersion string        // Optional, defaults to DefaultAPIVersion
	Timeout    time.Duration // Optional, zero means no timeout
	Name       string        // Optional, defaults to "azure"
}

// New creates an Azure OpenAI provider. The returned provider implements both
// chainz.Provider and chainz.ToolCaller.
func New(config Config) *openai.Provider {
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Name == "" {
		config.Name = "azure"
	}

	return openai.New(openai.Config{
		Model:   config.Deployment,
		Timeout: config.Timeout,
		Name:    config.Name,
		Options: []option.RequestOption{
			azureopenai.WithEndpoint(strings.TrimRight(config.Endpoint, "/"), config.APIVersion),
			azureopenai.WithAPIKey(config.APIKey),
		},
	})
}
