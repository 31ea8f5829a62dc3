package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolCount = attribute.Key("llm.tool_count")
	AttrToolNames = attribute.Key("llm.tool_names")

	AttrStreamChunks = attribute.Key("llm.stream_chunks")
	AttrFinishReason = attribute.Key("llm.finish_reason")

	AttrTaskAgent  = attribute.Key("task.agent")
	AttrTaskStatus = attribute.Key("task.status")

	AttrQueryConnection = attribute.Key("query.connection")
	AttrQueryStatus     = attribute.Key("query.status")
	AttrQueryRows       = attribute.Key("query.rows")
)
