package chainz

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrUnknownTool is returned when a tool name is not present in a Toolset.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool is returned when registering a tool name twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrNoResponse is returned when a provider answers with empty content.
	ErrNoResponse = errors.New("no response from provider")

	// ErrModelUnsupported is returned when a link names a model but its
	// provider cannot select a model per call.
	ErrModelUnsupported = errors.New("provider cannot select a model per call")
)

// MissingVariableError reports template variables absent from a Binding.
// It is a programmer error and is never retried.
type MissingVariableError struct {
	Variables []string // Sorted names of the missing variables
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variables: %s", strings.Join(e.Variables, ", "))
}

// ModelInvocationError wraps a transport, auth, or rate-limit failure from a model call.
// It is surfaced to the caller unchanged; retry policy belongs to the caller.
type ModelInvocationError struct {
	Link     string
	Provider string
	Model    string
	Err      error
}

func (e *ModelInvocationError) Error() string {
	target := e.Provider
	if e.Model != "" {
		target += "/" + e.Model
	}
	if e.Link != "" {
		return fmt.Sprintf("model invocation failed for link %q (%s): %v", e.Link, target, e.Err)
	}
	return fmt.Sprintf("model invocation failed (%s): %v", target, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// ToolExecutionError describes a failed tool run.
// The router never returns it; its text is fed back to the model as the tool result.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// MapperError wraps a failure of a pipeline stage's output mapper.
type MapperError struct {
	Stage string
	Err   error
}

func (e *MapperError) Error() string {
	return fmt.Sprintf("mapper for stage %q failed: %v", e.Stage, e.Err)
}

func (e *MapperError) Unwrap() error {
	return e.Err
}

// EventParseError reports model output that does not match the expected event layout.
type EventParseError struct {
	Reason string
	Err    error
}

func (e *EventParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *EventParseError) Unwrap() error {
	return e.Err
}
