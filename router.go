package chainz

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// RouterState names a step of a single Handle call.
type RouterState string

// Router states. Every Handle call that returns without a model error ends in StateFinalResponse.
const (
	StateAwaitingDecision RouterState = "AWAITING_DECISION"
	StateToolSelected     RouterState = "TOOL_SELECTED"
	StateNoTool           RouterState = "NO_TOOL"
	StateToolExecuted     RouterState = "TOOL_EXECUTED"
	StateFinalResponse    RouterState = "FINAL_RESPONSE"
)

// Follow-up binding variables.
const (
	VarRequest = "request"
	VarTool    = "tool"
	VarResult  = "result"
)

// DefaultFollowUpTemplate folds a tool result back into a second model call.
const DefaultFollowUpTemplate = "You asked earlier: '{request}'. Here's the real-time data from {tool}: {result}. Summarize this in one sentence."

// Result is the outcome of ToolRouter.Handle.
type Result struct {
	Text       string        // Final response text
	State      RouterState   // Always StateFinalResponse on success
	Path       []RouterState // States visited, in order
	Tool       string        // Selected tool, empty when none fired
	Argument   string        // Argument passed to the tool
	ToolOutput string        // Tool output, or the error text when the tool failed
	ToolFailed bool
	Response   ModelResponse // The model response the text came from
}

// ToolRouter decides whether one tool should run for a request and folds its output
// into a follow-up model call. Decision state lives only for the duration of a call.
type ToolRouter struct {
	tools    *Toolset
	provider Provider
	policy   Policy
	answer   *ChainLink
	ask      *ChainLink
	followUp *ChainLink
}

// NewRouter creates a router over tools using policy.
// Options are applied to both the answer and follow-up calls.
func NewRouter(provider Provider, tools *Toolset, policy Policy, opts ...Option) (*ToolRouter, error) {
	if provider == nil {
		return nil, fmt.Errorf("router: provider is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("router: policy is required")
	}
	if tools == nil {
		tools, _ = NewToolset()
	}

	answer, err := NewLink("router.answer", MustPromptStep("{"+VarRequest+"}"), provider, opts...)
	if err != nil {
		return nil, err
	}
	ask, err := NewLink("router.decision", MustPromptStep("{prompt}"), provider, opts...)
	if err != nil {
		return nil, err
	}
	followUp, err := NewLink("router.follow-up", MustPromptStep(DefaultFollowUpTemplate), provider, opts...)
	if err != nil {
		return nil, err
	}
	answer.WithTemperature(DefaultTemperatureBalanced)
	followUp.WithTemperature(DefaultTemperatureBalanced)
	ask.WithTemperature(DefaultTemperatureDeterministic)

	return &ToolRouter{
		tools:    tools,
		provider: provider,
		policy:   policy,
		answer:   answer,
		ask:      ask,
		followUp: followUp,
	}, nil
}

// WithFollowUp replaces the follow-up prompt. The template may only use the
// request, tool, and result variables.
func (r *ToolRouter) WithFollowUp(step *PromptStep) error {
	if step == nil {
		return fmt.Errorf("router: follow-up prompt step is required")
	}
	for _, v := range step.Variables() {
		if !slices.Contains([]string{VarRequest, VarTool, VarResult}, v) {
			return fmt.Errorf("follow-up template uses unknown variable %q", v)
		}
	}
	link, err := NewLink(r.followUp.name, step, r.provider)
	if err != nil {
		return err
	}
	link.pipeline = r.followUp.pipeline
	link.temperature = r.followUp.temperature
	link.model = r.followUp.model
	link.system = r.followUp.system
	r.followUp = link
	return nil
}

// WithTemperature sets the temperature for answer and follow-up calls.
func (r *ToolRouter) WithTemperature(temperature float32) *ToolRouter {
	r.answer.WithTemperature(temperature)
	r.followUp.WithTemperature(temperature)
	return r
}

// WithDecisionTemperature sets the temperature used by model-driven decisions.
func (r *ToolRouter) WithDecisionTemperature(temperature float32) *ToolRouter {
	r.ask.WithTemperature(temperature)
	return r
}

// WithSystem sets a system prompt for answer and follow-up calls.
func (r *ToolRouter) WithSystem(system string) *ToolRouter {
	r.answer.WithSystem(system)
	r.followUp.WithSystem(system)
	return r
}

// Tools returns the router's toolset.
func (r *ToolRouter) Tools() *Toolset {
	return r.tools
}

// Handle routes one request. At most one tool runs. Tool failures never escape: their
// text becomes the tool result seen by the follow-up call. Only model invocation
// failures are returned. session may be nil; when set, its history is sent along and the
// exchange is appended after success.
func (r *ToolRouter) Handle(ctx context.Context, session *Session, request string) (Result, error) {
	result := Result{Path: []RouterState{StateAwaitingDecision}}
	requestID := uuid.New().String()

	var history []Message
	var sessionID string
	if session != nil {
		history = session.Messages()
		sessionID = session.ID()
	}

	decision, err := r.policy.Decide(ctx, DecisionRequest{
		Request:     request,
		Tools:       r.tools,
		Provider:    r.provider,
		History:     history,
		Temperature: r.ask.Temperature(),
		Answer: func(ctx context.Context) (ModelResponse, error) {
			return r.answer.send(ctx, history, sessionID, request)
		},
		Ask: func(ctx context.Context, prompt string) (ModelResponse, error) {
			return r.ask.send(ctx, history, sessionID, prompt)
		},
	})
	if err != nil {
		return result, err
	}

	tool, selected := r.tools.Get(decision.Tool)
	if decision.Tool != "" && !selected {
		decision = Decision{Answer: decision.Answer}
	}

	state := StateNoTool
	if selected {
		state = StateToolSelected
	}
	result.Path = append(result.Path, state)
	capitan.Info(ctx, RouterDecided,
		RequestIDKey.Field(requestID),
		SessionIDKey.Field(sessionID),
		PolicyKey.Field(r.policy.Name()),
		DecisionKey.Field(string(state)),
		ToolKey.Field(decision.Tool),
		InputKey.Field(request),
	)

	var resp ModelResponse
	if !selected {
		if decision.Answer != nil {
			resp = *decision.Answer
		} else {
			resp, err = r.answer.send(ctx, history, sessionID, request)
			if err != nil {
				return result, err
			}
		}
	} else {
		argument := decision.Argument
		if argument == "" {
			argument = request
		}
		output, toolErr := r.tools.Run(ctx, session, tool.Name, argument)
		if toolErr != nil {
			output = toolErr.Error()
			result.ToolFailed = true
		}
		result.Tool = tool.Name
		result.Argument = argument
		result.ToolOutput = output
		result.Path = append(result.Path, StateToolExecuted)

		prompt, renderErr := r.followUp.step.Render(Binding{
			VarRequest: request,
			VarTool:    tool.Name,
			VarResult:  output,
		})
		if renderErr != nil {
			return result, renderErr
		}
		resp, err = r.followUp.send(ctx, history, sessionID, prompt)
		if err != nil {
			return result, err
		}
	}

	if session != nil {
		session.Append(RoleUser, request)
		session.Append(RoleAssistant, resp.Text)
		session.SetUsage(&resp.Usage)
	}

	result.Text = resp.Text
	result.Response = resp
	result.State = StateFinalResponse
	result.Path = append(result.Path, StateFinalResponse)
	return result, nil
}

// Respond handles request and returns the text to show the user.
// Model failures are described in the returned text instead of being raised.
func (r *ToolRouter) Respond(ctx context.Context, session *Session, request string) string {
	result, err := r.Handle(ctx, session, request)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return strings.TrimSpace(result.Text)
}
