package chainz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMockProvider_Call(t *testing.T) {
	provider := NewMockProvider()

	resp, err := provider.Call(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "first line\nsecond line"},
	}, 0.5)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Content != "Mock response to: first line" {
		t.Errorf("Unexpected content %q", resp.Content)
	}
	if resp.Model != "mock-model" {
		t.Errorf("Unexpected model %q", resp.Model)
	}
	if resp.Usage.Total != resp.Usage.Prompt+resp.Usage.Completion {
		t.Errorf("Inconsistent usage %+v", resp.Usage)
	}

	calls := provider.Calls()
	if len(calls) != 1 || calls[0].Temperature != 0.5 || calls[0].Prompt() != "first line\nsecond line" {
		t.Errorf("Unexpected recorded calls %+v", calls)
	}
}

func TestMockProvider_SetAvailable(t *testing.T) {
	provider := NewMockProviderWithName("flaky")
	provider.SetAvailable(false)

	_, err := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 0.5)
	if err == nil || !strings.Contains(err.Error(), "flaky") {
		t.Errorf("Expected unavailable error naming the provider, got %v", err)
	}

	provider.SetAvailable(true)
	if _, err := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 0.5); err != nil {
		t.Errorf("Expected success after re-enabling, got %v", err)
	}
	if len(provider.Calls()) != 2 {
		t.Errorf("Expected both calls recorded, got %d", len(provider.Calls()))
	}
}

func TestNewMockProviderWithResponse(t *testing.T) {
	provider := NewMockProviderWithResponse("fixed")
	resp, err := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "anything"}}, 0.5)
	if err != nil || resp.Content != "fixed" {
		t.Errorf("Unexpected result %+v, %v", resp, err)
	}
	if provider.Name() != "mock" {
		t.Errorf("Unexpected name %q", provider.Name())
	}
}

func TestNewMockProviderWithCallback(t *testing.T) {
	var gotPrompt string
	var gotTemp float32
	provider := NewMockProviderWithCallback(func(prompt string, temperature float32) (string, error) {
		gotPrompt, gotTemp = prompt, temperature
		return strings.ToUpper(prompt), nil
	})

	resp, _ := provider.Call(context.Background(), []Message{{Role: RoleUser, Content: "hello"}}, 0.3)
	if resp.Content != "HELLO" || gotPrompt != "hello" || gotTemp != 0.3 {
		t.Errorf("Unexpected callback results %q, %q, %v", resp.Content, gotPrompt, gotTemp)
	}
}

func TestNewFailingMockProvider(t *testing.T) {
	cause := errors.New("service unavailable")
	_, err := NewFailingMockProvider(cause).Call(context.Background(), nil, 0.5)
	if !errors.Is(err, cause) {
		t.Errorf("Expected configured error, got %v", err)
	}
}

func TestMockToolCaller(t *testing.T) {
	caller := NewMockToolCaller("openai").
		OnRequest("bitcoin", ToolCall{Name: "get_bitcoin_price", Arguments: `{"input":"btc"}`})

	resp, err := caller.CallWithTools(context.Background(), []Message{{Role: RoleUser, Content: "Bitcoin price?"}}, nil, 0.1)
	if err != nil {
		t.Fatalf("CallWithTools failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call_get_bitcoin_price" || resp.Content != "" {
		t.Errorf("Unexpected tool call response %+v", resp)
	}

	resp, _ = caller.CallWithTools(context.Background(), []Message{{Role: RoleUser, Content: "hello"}}, nil, 0.1)
	if len(resp.ToolCalls) != 0 || resp.Content != "Mock response to: hello" {
		t.Errorf("Expected plain answer, got %+v", resp)
	}
}
