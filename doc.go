// Package minusx is the conversation backend for an AI data analyst.
//
// It implements a stateless orchestration engine over an append-only
// conversation log: each request carries the full log, the engine rebuilds
// in-memory state from it, runs or resumes a tree of agent tasks, and
// returns only the newly appended entries. Nothing is persisted server
// side; the client owns the log.
//
// # Quick Start
//
// Register an agent, then drive a conversation through the orchestrator:
//
//	minusx.Register("AnalystAgent", analyst.New(provider))
//
//	orch := minusx.NewOrchestrator(log)
//	err := orch.Run(ctx, minusx.AgentCall{
//		Agent: "AnalystAgent",
//		Args:  map[string]any{"goal": "revenue by month"},
//	}, nil, "")
//
// Agents whose tools run on the client raise [UserInputError]; the request
// returns with those tasks pending, the client executes them, and the next
// request resumes from the log.
//
// # Core Pieces
//
//   - [Task], [TaskResult], [TaskDebugEntry] — the three log entry kinds
//   - [Conversation] — compressed state rebuilt from the log
//   - [Orchestrator] — run/resume over the task tree
//   - [Agent] — a unit of work instantiated per task
//   - [Provider] — LLM backend (streaming chat completions)
//
// # Included Implementations
//
// Providers: provider/openaicompat (OpenAI-compatible chat completions).
// Agents: analyst (SQL analyst loop, report generation).
// Warehouse access: connect (Postgres, SQLite, CSV uploads).
//
// See cmd/minusx for the HTTP server wiring everything together.
package minusx
