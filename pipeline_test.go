package chainz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// recordingProvider answers with a fixed reply per prompt prefix and records prompts in order.
type recordingProvider struct {
	name    string
	mu      sync.Mutex
	prompts []string
	replies map[string]string
	fail    map[string]error
}

func newRecordingProvider(name string) *recordingProvider {
	return &recordingProvider{name: name, replies: map[string]string{}, fail: map[string]error{}}
}

func (p *recordingProvider) Call(_ context.Context, messages []Message, _ float32) (*ProviderResponse, error) {
	prompt := messages[len(messages)-1].Content
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	for prefix, err := range p.fail {
		if strings.HasPrefix(prompt, prefix) {
			return nil, err
		}
	}
	for prefix, reply := range p.replies {
		if strings.HasPrefix(prompt, prefix) {
			return &ProviderResponse{Content: reply, Model: p.name + "-model"}, nil
		}
	}
	return &ProviderResponse{Content: "unexpected", Model: p.name + "-model"}, nil
}

func (p *recordingProvider) Name() string { return p.name }

func (p *recordingProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	gemini := newRecordingProvider("gemini")
	gemini.replies["Give me a fun fact"] = "  Rain smells because of geosmin.  "
	openai := newRecordingProvider("openai")
	openai.replies["Write a short story"] = "A story about geosmin."
	openai.replies["Turn this story"] = "#rain #geosmin"

	fact, _ := NewLink("fact", MustPromptStep("Give me a fun fact about {weather} weather."), gemini)
	story, _ := NewLink("story", MustPromptStep("Write a short story using this fact: {fact}"), openai)
	tweet, _ := NewLink("tweet", MustPromptStep("Turn this story into a tweet: {story}"), openai)

	pipeline := NewPipeline("tweet").
		Then("fact", fact, MapTo("fact")).
		Then("story", story, MapTo("story")).
		Then("tweet", tweet, nil)

	resp, trace, err := pipeline.RunWithTrace(context.Background(), Binding{"weather": "rainy"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Text != "#rain #geosmin" {
		t.Errorf("Expected final stage output, got %q", resp.Text)
	}
	if len(trace) != 3 {
		t.Fatalf("Expected 3 trace entries, got %d", len(trace))
	}

	if got := gemini.Prompts(); len(got) != 1 || got[0] != "Give me a fun fact about rainy weather." {
		t.Errorf("Unexpected first stage prompts %v", got)
	}
	prompts := openai.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("Expected 2 prompts on second provider, got %v", prompts)
	}
	if prompts[0] != "Write a short story using this fact: Rain smells because of geosmin." {
		t.Errorf("Expected trimmed mapped output, got %q", prompts[0])
	}
	if prompts[1] != "Turn this story into a tweet: A story about geosmin." {
		t.Errorf("Unexpected third prompt %q", prompts[1])
	}
	if trace[1].Input["fact"] != "Rain smells because of geosmin." {
		t.Errorf("Unexpected trace input %v", trace[1].Input)
	}
}

func TestPipeline_FailureStopsLaterStages(t *testing.T) {
	cause := errors.New("quota exceeded")
	provider := newRecordingProvider("mock")
	provider.replies["one"] = "first"
	provider.fail["two"] = cause
	provider.replies["three"] = "never"

	one, _ := NewLink("one", MustPromptStep("one {x}"), provider)
	two, _ := NewLink("two", MustPromptStep("two {y}"), provider)
	three, _ := NewLink("three", MustPromptStep("three {z}"), provider)

	pipeline := NewPipeline("p").
		Then("one", one, MapTo("y")).
		Then("two", two, MapTo("z")).
		Then("three", three, nil)

	_, err := pipeline.Run(context.Background(), Binding{"x": "go"})
	var invocation *ModelInvocationError
	if !errors.As(err, &invocation) {
		t.Fatalf("Expected ModelInvocationError, got %v", err)
	}
	if invocation.Link != "two" || !errors.Is(err, cause) {
		t.Errorf("Expected failure from stage two with original cause, got %v", err)
	}

	for _, p := range provider.Prompts() {
		if strings.HasPrefix(p, "three") {
			t.Error("Stage three must not run after stage two fails")
		}
	}
}

func TestPipeline_MapperMismatch(t *testing.T) {
	provider := NewMockProvider()
	one, _ := NewLink("one", MustPromptStep("{x}"), provider)
	two, _ := NewLink("two", MustPromptStep("{needed}"), provider)

	_, err := NewPipeline("p").
		Then("one", one, MapTo("other")).
		Then("two", two, nil).
		Run(context.Background(), Binding{"x": "go"})

	var missing *MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingVariableError, got %v", err)
	}
	if len(provider.Calls()) != 1 {
		t.Errorf("Second stage should not call the provider, got %d calls", len(provider.Calls()))
	}
}

func TestPipeline_MapperError(t *testing.T) {
	provider := NewMockProvider()
	one, _ := NewLink("one", MustPromptStep("{x}"), provider)
	two, _ := NewLink("two", MustPromptStep("{y}"), provider)
	cause := errors.New("cannot parse")

	_, err := NewPipeline("p").
		Then("one", one, func(ModelResponse) (Binding, error) { return nil, cause }).
		Then("two", two, nil).
		Run(context.Background(), Binding{"x": "go"})

	var mapErr *MapperError
	if !errors.As(err, &mapErr) {
		t.Fatalf("Expected MapperError, got %v", err)
	}
	if mapErr.Stage != "one" || !errors.Is(err, cause) {
		t.Errorf("Unexpected mapper error %v", err)
	}
}

func TestPipeline_Validate(t *testing.T) {
	if err := NewPipeline("empty").Validate(); err == nil {
		t.Error("Expected error for empty pipeline")
	}

	link, _ := NewLink("x", MustPromptStep("{x}"), NewMockProvider())
	if err := NewPipeline("p").Then("a", link, nil).Then("b", link, nil).Validate(); err == nil {
		t.Error("Expected error for non-final stage without mapper")
	}
	if err := NewPipeline("p").Then("a", nil, nil).Validate(); err == nil {
		t.Error("Expected error for stage without link")
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	provider := NewMockProvider()
	link, _ := NewLink("x", MustPromptStep("{x}"), provider)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline("p").Then("x", link, nil).Run(ctx, Binding{"x": "y"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(provider.Calls()) != 0 {
		t.Error("No call should be made with a canceled context")
	}
}

func TestMapToWith(t *testing.T) {
	binding, err := MapToWith("summary", Binding{"today": "2025-04-13"})(ModelResponse{Text: " done \n"})
	if err != nil {
		t.Fatalf("mapper failed: %v", err)
	}
	if binding["summary"] != "done" || binding["today"] != "2025-04-13" {
		t.Errorf("Unexpected binding %v", binding)
	}
}
