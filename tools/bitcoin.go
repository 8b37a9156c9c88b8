// Package tools provides ready-made chainz tools: a live bitcoin quote, Python tips,
// meeting helpers backed by a model, and calendar/drive writers.
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/zoobzio/chainz"
)

// BitcoinConfig configures the CoinGecko price tool.
type BitcoinConfig struct {
	BaseURL    string       // Optional, defaults to "https://api.coingecko.com/api/v3"
	Currency   string       // Optional, defaults to "idr"
	HTTPClient *http.Client // Optional, defaults to a client without timeout
}

// BitcoinPrice returns a tool reporting the current bitcoin price from CoinGecko.
// Its triggers require both "bitcoin" and "price" under chainz.MatchAll.
func BitcoinPrice(cfg BitcoinConfig) chainz.Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Currency == "" {
		cfg.Currency = "idr"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return chainz.Tool{
		Name:        "get_bitcoin_price",
		Description: fmt.Sprintf("Returns the current price of Bitcoin in %s.", strings.ToUpper(cfg.Currency)),
		Triggers:    []string{"bitcoin", "price"},
		Handler: func(ctx context.Context, _ *chainz.Session, _ string) (string, error) {
			return fetchBitcoinPrice(ctx, cfg)
		},
	}
}

func fetchBitcoinPrice(ctx context.Context, cfg BitcoinConfig) (string, error) {
	query := url.Values{}
	query.Set("ids", "bitcoin")
	query.Set("vs_currencies", cfg.Currency)
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("coingecko error: status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("coingecko returned invalid JSON")
	}

	price := gjson.GetBytes(body, "bitcoin."+cfg.Currency)
	if !price.Exists() {
		return "", fmt.Errorf("no %s price in response", cfg.Currency)
	}
	return fmt.Sprintf("Bitcoin price is %s %s", price.Raw, strings.ToUpper(cfg.Currency)), nil
}
