package chainz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Mapper turns a stage's response into the binding for the next stage.
// It must populate the variables required by the next stage's prompt.
type Mapper func(ModelResponse) (Binding, error)

// MapTo binds the trimmed response text to a single variable.
func MapTo(name string) Mapper {
	return func(resp ModelResponse) (Binding, error) {
		return Binding{name: strings.TrimSpace(resp.Text)}, nil
	}
}

// MapToWith binds the trimmed response text to name alongside fixed values.
func MapToWith(name string, extra Binding) Mapper {
	return func(resp ModelResponse) (Binding, error) {
		return extra.With(name, strings.TrimSpace(resp.Text)), nil
	}
}

// Stage is one link of a pipeline together with its output mapper.
type Stage struct {
	Name   string
	Link   *ChainLink
	Mapper Mapper // Unused on the final stage
}

// StageTrace records what a stage received and produced.
type StageTrace struct {
	Stage    string
	Input    Binding
	Response ModelResponse
}

// Pipeline runs links strictly in order, feeding each mapped response to the next link.
// Stages may target different providers.
type Pipeline struct {
	name   string
	stages []Stage
}

// NewPipeline creates an empty pipeline.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{name: name}
}

// Then appends a stage. mapper may be nil for the final stage.
func (p *Pipeline) Then(name string, link *ChainLink, mapper Mapper) *Pipeline {
	p.stages = append(p.stages, Stage{Name: name, Link: link, Mapper: mapper})
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Stages returns a copy of the configured stages.
func (p *Pipeline) Stages() []Stage {
	stages := make([]Stage, len(p.stages))
	copy(stages, p.stages)
	return stages
}

// Validate checks the pipeline can run: at least one stage, every stage has a link,
// and every non-final stage has a mapper.
func (p *Pipeline) Validate() error {
	if len(p.stages) == 0 {
		return fmt.Errorf("pipeline %q has no stages", p.name)
	}
	for i, s := range p.stages {
		if s.Link == nil {
			return fmt.Errorf("pipeline %q: stage %q has no link", p.name, s.Name)
		}
		if i < len(p.stages)-1 && s.Mapper == nil {
			return fmt.Errorf("pipeline %q: stage %q has no mapper", p.name, s.Name)
		}
	}
	return nil
}

type stageContextKey struct{}

// withStage marks ctx as belonging to the named pipeline stage so link events carry it.
func withStage(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stageContextKey{}, name)
}

func stageFields(ctx context.Context) []capitan.Field {
	if name, ok := ctx.Value(stageContextKey{}).(string); ok && name != "" {
		return []capitan.Field{StageKey.Field(name)}
	}
	return nil
}

// pipelineRun is the value threaded through the pipz sequence.
type pipelineRun struct {
	id       string
	stage    string
	binding  Binding
	response ModelResponse
	trace    []StageTrace
	err      error
}

// Run executes every stage in order and returns the final stage's response.
// The first stage receives initial unmodified. A stage failure is returned unchanged
// and no later stage runs; callers re-run the whole pipeline to recover.
func (p *Pipeline) Run(ctx context.Context, initial Binding) (ModelResponse, error) {
	resp, _, err := p.RunWithTrace(ctx, initial)
	return resp, err
}

// RunWithTrace behaves like Run and also returns the per-stage trace on success.
func (p *Pipeline) RunWithTrace(ctx context.Context, initial Binding) (ModelResponse, []StageTrace, error) {
	if err := p.Validate(); err != nil {
		return ModelResponse{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return ModelResponse{}, nil, err
	}

	run := &pipelineRun{
		id:      uuid.New().String(),
		binding: initial,
	}

	processors := make([]pipz.Chainable[*pipelineRun], 0, len(p.stages))
	for i, s := range p.stages {
		processors = append(processors, p.stageProcessor(i, s))
	}
	sequence := pipz.NewSequence(pipz.NewIdentity(p.name, "Pipeline stages in order"), processors...)

	capitan.Info(ctx, PipelineStarted,
		RequestIDKey.Field(run.id),
		PipelineKey.Field(p.name),
	)

	if _, err := sequence.Process(ctx, run); err != nil {
		stageErr := run.err
		if stageErr == nil {
			stageErr = err
		}
		capitan.Error(ctx, PipelineFailed,
			RequestIDKey.Field(run.id),
			PipelineKey.Field(p.name),
			StageKey.Field(run.stage),
			StageIndexKey.Field(len(run.trace)),
			ErrorKey.Field(stageErr.Error()),
		)
		return ModelResponse{}, nil, stageErr
	}

	capitan.Info(ctx, PipelineCompleted,
		RequestIDKey.Field(run.id),
		PipelineKey.Field(p.name),
		OutputKey.Field(run.response.Text),
	)

	return run.response, run.trace, nil
}

func (p *Pipeline) stageProcessor(index int, stage Stage) pipz.Chainable[*pipelineRun] {
	last := index == len(p.stages)-1
	return pipz.Apply(pipz.NewIdentity(stage.Name, "Pipeline stage"), func(ctx context.Context, run *pipelineRun) (*pipelineRun, error) {
		run.stage = stage.Name
		if err := ctx.Err(); err != nil {
			run.err = err
			return run, err
		}

		input := run.binding
		resp, err := stage.Link.Invoke(withStage(ctx, stage.Name), input)
		if err != nil {
			run.err = err
			return run, err
		}
		run.trace = append(run.trace, StageTrace{Stage: stage.Name, Input: input, Response: resp})
		run.response = resp

		if last {
			return run, nil
		}

		next, err := stage.Mapper(resp)
		if err != nil {
			var mapErr *MapperError
			if !errors.As(err, &mapErr) {
				err = &MapperError{Stage: stage.Name, Err: err}
			}
			run.err = err
			return run, err
		}
		run.binding = next
		return run, nil
	})
}
