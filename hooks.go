package chainz

import "github.com/zoobzio/capitan"

// Signals for hook events.
var (
	LinkStarted           = capitan.NewSignal("chain.link.started", "Chain link invocation started")
	LinkCompleted         = capitan.NewSignal("chain.link.completed", "Chain link invocation completed")
	LinkFailed            = capitan.NewSignal("chain.link.failed", "Chain link invocation failed")
	PipelineStarted       = capitan.NewSignal("chain.pipeline.started", "Pipeline run started")
	PipelineCompleted     = capitan.NewSignal("chain.pipeline.completed", "Pipeline run completed")
	PipelineFailed        = capitan.NewSignal("chain.pipeline.failed", "Pipeline run failed")
	RouterDecided         = capitan.NewSignal("chain.router.decided", "Router chose whether to run a tool")
	ToolExecuted          = capitan.NewSignal("chain.tool.executed", "Tool executed")
	ToolFailed            = capitan.NewSignal("chain.tool.failed", "Tool failed")
	ProviderCallStarted   = capitan.NewSignal("llm.provider.call.started", "Provider call started")
	ProviderCallCompleted = capitan.NewSignal("llm.provider.call.completed", "Provider call completed")
	ProviderCallFailed    = capitan.NewSignal("llm.provider.call.failed", "Provider call failed")
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey   = capitan.NewStringKey("chain.request.id")
	SessionIDKey   = capitan.NewStringKey("chain.session.id")
	LinkKey        = capitan.NewStringKey("chain.link")
	PipelineKey    = capitan.NewStringKey("chain.pipeline")
	StageKey       = capitan.NewStringKey("chain.stage")
	StageIndexKey  = capitan.NewIntKey("chain.stage.index")
	TemperatureKey = capitan.NewFloat64Key("chain.temperature")

	// Input/Output data.
	InputKey  = capitan.NewStringKey("chain.input")
	OutputKey = capitan.NewStringKey("chain.output")

	// Routing.
	PolicyKey   = capitan.NewStringKey("chain.router.policy")
	DecisionKey = capitan.NewStringKey("chain.router.decision")
	ToolKey     = capitan.NewStringKey("chain.tool")

	// Error information.
	ErrorKey     = capitan.NewStringKey("chain.error")
	ErrorTypeKey = capitan.NewStringKey("chain.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("llm.provider")
	ModelKey    = capitan.NewStringKey("llm.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("llm.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("llm.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("llm.tokens.total")
	DurationMsKey       = capitan.NewIntKey("llm.duration.ms")

	// HTTP/API metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("llm.http.status.code")
	APIErrorTypeKey   = capitan.NewStringKey("llm.api.error.type")

	// Response metadata.
	ResponseIDKey           = capitan.NewStringKey("llm.response.id")
	ResponseFinishReasonKey = capitan.NewStringKey("llm.response.finish.reason")
)
