package chainz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// ToolHandler runs a tool with its single string argument.
// Handlers may have side effects (network calls, file writes) and are not assumed idempotent.
// The session is nil when the caller supplied none.
type ToolHandler func(ctx context.Context, session *Session, argument string) (string, error)

// Tool is a named, described callable.
// Triggers is the keyword vocabulary used by KeywordPolicy.
type Tool struct {
	Name        string
	Description string
	Triggers    []string
	Handler     ToolHandler
}

// Spec returns the function-calling description of the tool.
func (t Tool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  toolArgsSchema(),
	}
}

// Toolset is an ordered registry of tools keyed by name.
// Registration order is the order KeywordPolicy checks tools in.
type Toolset struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolset creates a toolset holding tools in the given order.
func NewToolset(tools ...Tool) (*Toolset, error) {
	ts := &Toolset{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := ts.Register(t); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// Register adds a tool to the set.
func (ts *Toolset) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	ts.tools[t.Name] = t
	ts.order = append(ts.order, t.Name)
	return nil
}

// Get returns the tool registered under name.
func (ts *Toolset) Get(name string) (Tool, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.tools[name]
	return t, ok
}

// All returns the tools in registration order.
func (ts *Toolset) All() []Tool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]Tool, 0, len(ts.order))
	for _, name := range ts.order {
		out = append(out, ts.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (ts *Toolset) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.order)
}

// Specs returns function-calling descriptions for every tool.
func (ts *Toolset) Specs() []ToolSpec {
	tools := ts.All()
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Describe lists tools as "- name: description" lines for prompts.
func (ts *Toolset) Describe() string {
	var b strings.Builder
	for _, t := range ts.All() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimSpace(b.String())
}

// Run executes the named tool. Handler errors and panics come back as *ToolExecutionError;
// an unregistered name yields ErrUnknownTool.
func (ts *Toolset) Run(ctx context.Context, session *Session, name, argument string) (out string, err error) {
	t, ok := ts.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &ToolExecutionError{Tool: name, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			capitan.Error(ctx, ToolFailed,
				ToolKey.Field(name),
				InputKey.Field(argument),
				ErrorKey.Field(err.Error()),
				DurationMsKey.Field(int(time.Since(start).Milliseconds())),
			)
			return
		}
		capitan.Info(ctx, ToolExecuted,
			ToolKey.Field(name),
			InputKey.Field(argument),
			OutputKey.Field(out),
			DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		)
	}()

	out, err = t.Handler(ctx, session, argument)
	if err != nil {
		return "", &ToolExecutionError{Tool: name, Err: err}
	}
	return out, nil
}
