package chainz

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Definition is a pipeline described in YAML.
//
//	name: tweet
//	stages:
//	  - name: fact
//	    provider: gemini
//	    temperature: 0.5
//	    template: "Give me a fun fact about {weather} weather."
//	    output: fact
//	  - name: story
//	    provider: openai
//	    model: gpt-4o-mini
//	    template: "Write a short story using this fact: {fact}"
type Definition struct {
	Name   string            `yaml:"name"`
	Stages []StageDefinition `yaml:"stages"`
}

// StageDefinition describes one stage. Output names the variable the stage's
// trimmed response is bound to for the next stage.
type StageDefinition struct {
	Name        string   `yaml:"name"`
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float32 `yaml:"temperature,omitempty"`
	System      string   `yaml:"system,omitempty"`
	Template    string   `yaml:"template"`
	Output      string   `yaml:"output,omitempty"`
}

// LoadDefinition decodes a pipeline definition from YAML bytes.
func LoadDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("pipeline definition must have a name")
	}
	if len(d.Stages) == 0 {
		return nil, fmt.Errorf("pipeline definition %q has no stages", d.Name)
	}
	return &d, nil
}

// LoadDefinitionFile reads and decodes a pipeline definition file.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition %s: %w", path, err)
	}
	return LoadDefinition(data)
}

// Build resolves provider names against providers and assembles the pipeline.
// Every non-final stage needs an output, and that output must cover the next
// stage's template variables.
func (d *Definition) Build(providers map[string]Provider, opts ...Option) (*Pipeline, error) {
	steps := make([]*PromptStep, len(d.Stages))
	for i, s := range d.Stages {
		step, err := NewPromptStep(s.Template)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name, err)
		}
		steps[i] = step
	}

	pipeline := NewPipeline(d.Name)
	for i, s := range d.Stages {
		provider, ok := providers[s.Provider]
		if !ok {
			return nil, fmt.Errorf("stage %q: unknown provider %q", s.Name, s.Provider)
		}

		link, err := NewLink(s.Name, steps[i], provider, opts...)
		if err != nil {
			return nil, err
		}
		if s.Model != "" {
			if _, ok := provider.(ModelCaller); !ok {
				return nil, fmt.Errorf("stage %q: %w: %s cannot call %q", s.Name, ErrModelUnsupported, s.Provider, s.Model)
			}
			link.WithModel(s.Model)
		}
		if s.Temperature != nil {
			if err := ValidateTemperature(*s.Temperature); err != nil {
				return nil, fmt.Errorf("stage %q: %w", s.Name, err)
			}
			link.WithTemperature(*s.Temperature)
		}
		if s.System != "" {
			link.WithSystem(s.System)
		}

		if i == len(d.Stages)-1 {
			pipeline.Then(s.Name, link, nil)
			continue
		}

		if s.Output == "" {
			return nil, fmt.Errorf("stage %q: output variable is required", s.Name)
		}
		for _, v := range steps[i+1].Variables() {
			if v != s.Output {
				return nil, fmt.Errorf("stage %q needs %q but stage %q only provides %q",
					d.Stages[i+1].Name, v, s.Name, s.Output)
			}
		}
		if !slices.Contains(steps[i+1].Variables(), s.Output) {
			return nil, fmt.Errorf("stage %q does not use %q produced by stage %q",
				d.Stages[i+1].Name, s.Output, s.Name)
		}
		pipeline.Then(s.Name, link, MapTo(s.Output))
	}
	return pipeline, nil
}
