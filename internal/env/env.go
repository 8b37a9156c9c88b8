// Package env resolves provider credentials and settings from the environment,
// loading a .env file first when one exists.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Well-known variable names.
const (
	OpenAIAPIKey       = "OPENAI_API_KEY"
	AnthropicAPIKey    = "ANTHROPIC_API_KEY"
	GoogleAPIKey       = "GOOGLE_API_KEY"
	LogLevel           = "CHAINZ_LOG_LEVEL"
	TimeZone           = "CHAINZ_TIMEZONE"
	CoinGeckoBaseURL   = "COINGECKO_BASE_URL"
	DataDir            = "CHAINZ_DATA_DIR"
	ProviderTimeoutSec = "CHAINZ_PROVIDER_TIMEOUT_SECONDS"

	AzureOpenAIEndpoint   = "AZURE_OPENAI_ENDPOINT"
	AzureOpenAIAPIKey     = "AZURE_OPENAI_API_KEY"
	AzureOpenAIDeployment = "AZURE_OPENAI_DEPLOYMENT"
)

// Load reads the given .env files (".env" when none are named) into the process
// environment. Variables already set are not overridden and missing files are ignored.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Require returns the value of name or an error naming the missing variable.
func Require(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return v, nil
}

// Get returns the value of name, or def when it is unset or blank.
func Get(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// Int returns name parsed as an integer, or def when unset or malformed.
func Int(name string, def int) int {
	v, err := strconv.Atoi(Get(name, ""))
	if err != nil {
		return def
	}
	return v
}
