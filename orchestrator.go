package minusx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// maxParallelTasks bounds concurrent task executions within one batch.
const maxParallelTasks = 10

// Orchestrator drives a tree of agent tasks over one conversation. It is
// request scoped: built from the client's log, mutated while running, and
// discarded after the response's log diff is extracted.
type Orchestrator struct {
	compressed *Conversation
	logger     *slog.Logger
	tracer     Tracer

	onMessage func(map[string]any)
	onContent func(chunk, streamID string)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the structured logger for task lifecycle events.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracer sets the tracer used to span task executions.
func WithTracer(t Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// OnMessage sets a callback fired when a task starts executing.
func OnMessage(fn func(map[string]any)) OrchestratorOption {
	return func(o *Orchestrator) { o.onMessage = fn }
}

// OnContent sets the callback for streamed LLM content. Agents hand it to
// the provider; it receives each text delta with the stream id of the LLM
// call that produced it. Must not block.
func OnContent(fn func(chunk, streamID string)) OrchestratorOption {
	return func(o *Orchestrator) { o.onContent = fn }
}

// OnToolCreated sets a callback fired when a task is appended to the log.
// Must not block.
func OnToolCreated(fn func(*CompressedTask)) OrchestratorOption {
	return func(o *Orchestrator) { o.compressed.onToolCreated = fn }
}

// OnToolCompleted sets a callback fired when a task receives its result.
// Must not block.
func OnToolCompleted(fn func(*CompressedTask)) OrchestratorOption {
	return func(o *Orchestrator) { o.compressed.onToolCompleted = fn }
}

// NewOrchestrator rebuilds conversation state from log and returns an
// orchestrator ready to run or resume it.
func NewOrchestrator(log Log, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		compressed: NewConversation(log),
		logger:     nopLogger,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.compressed.logger = o.logger
	return o
}

// Compressed returns the conversation state this orchestrator mutates.
func (o *Orchestrator) Compressed() *Conversation { return o.compressed }

// ContentCallback returns the streamed-content callback, or nil.
func (o *Orchestrator) ContentCallback() func(chunk, streamID string) { return o.onContent }

// Run executes calls as one batch: all tasks share a run id, are appended
// to the log before any executes, and run concurrently. Suspensions are
// aggregated into a single [UserInputError] after every call has settled;
// any other error propagates as-is.
func (o *Orchestrator) Run(ctx context.Context, calls []AgentCall, parentUniqueID, previousUniqueID *string) error {
	runID := NewCallID()
	tasks := make([]*CompressedTask, 0, len(calls))
	childIDs := make([]string, 0, len(calls))

	for _, call := range calls {
		uniqueID := call.UniqueID
		if uniqueID == "" {
			uniqueID = NewCallID()
		}
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		task := &CompressedTask{
			ParentUniqueID:   parentUniqueID,
			PreviousUniqueID: previousUniqueID,
			RunID:            runID,
			Agent:            call.Agent,
			Args:             args,
			UniqueID:         uniqueID,
			Debug:            &TaskDebug{},
		}
		if call.Error != "" {
			task.Result = call.Error
		}
		o.compressed.AddTask(task)
		tasks = append(tasks, task)
		childIDs = append(childIDs, uniqueID)
	}

	if parentUniqueID != nil {
		o.compressed.appendChildBatch(*parentUniqueID, childIDs)
	}

	errs := runParallel(ctx, len(tasks), func(i int) error {
		return o.runSingle(ctx, tasks[i])
	})
	return gatherUserInput(errs)
}

func (o *Orchestrator) runSingle(ctx context.Context, task *CompressedTask) error {
	if o.compressed.hasResult(task.UniqueID) {
		return nil
	}

	args := copyJSONMap(task.Args)
	if _, ok := args["_unique_id"]; ok {
		return fmt.Errorf("agent arguments cannot contain \"_unique_id\" or \"orchestrator\": agent %s", task.Agent)
	}
	if _, ok := args["orchestrator"]; ok {
		return fmt.Errorf("agent arguments cannot contain \"_unique_id\" or \"orchestrator\": agent %s", task.Agent)
	}

	spec, err := LookupAgent(task.Agent)
	if err != nil {
		return err
	}
	normalized, missing := normalizeArgs(spec, args)
	if len(missing) > 0 {
		o.compressed.AssignResult(task.UniqueID, missingParamsResult(missing))
		return nil
	}

	agent, err := spec.New(TaskHandle{UniqueID: task.UniqueID, Orchestrator: o}, normalized)
	if err != nil {
		return err
	}
	children, err := o.Children(task.UniqueID)
	if err != nil {
		return err
	}
	if err := agent.Reduce(ctx, children); err != nil {
		return err
	}

	o.emitMessage(task, normalized, true)
	return o.execute(ctx, task, agent, 0)
}

// Resume advances every pending leaf concurrently. A leaf whose children
// have all completed is reduced and rerun; when it completes, advancement
// recurses into its parent. Suspensions aggregate exactly as in Run.
func (o *Orchestrator) Resume(ctx context.Context) error {
	processing := &stringSet{m: make(map[string]struct{})}
	leaves := o.compressed.leafPendingTasks()
	errs := runParallel(ctx, len(leaves), func(i int) error {
		return o.resumePending(ctx, leaves[i], 0, processing)
	})
	return gatherUserInput(errs)
}

func (o *Orchestrator) resumePending(ctx context.Context, task *CompressedTask, childDuration float64, processing *stringSet) error {
	if processing.has(task.UniqueID) || o.compressed.hasResult(task.UniqueID) {
		return nil
	}

	children, err := o.Children(task.UniqueID)
	if err != nil {
		return err
	}
	for _, group := range children {
		for _, child := range group {
			if child.Result == nil {
				return nil
			}
		}
	}
	if !processing.tryAdd(task.UniqueID) {
		return nil
	}

	spec, err := LookupAgent(task.Agent)
	if err != nil {
		return err
	}
	normalized, missing := normalizeArgs(spec, task.Args)
	if len(missing) > 0 {
		o.compressed.AssignResult(task.UniqueID, missingParamsResult(missing))
		return nil
	}

	agent, err := spec.New(TaskHandle{UniqueID: task.UniqueID, Orchestrator: o}, normalized)
	if err != nil {
		return err
	}
	if err := agent.Reduce(ctx, children); err != nil {
		return err
	}

	o.emitMessage(task, task.Args, false)
	if err := o.execute(ctx, task, agent, childDuration); err != nil {
		return err
	}

	if task.ParentUniqueID != nil {
		if parent := o.compressed.Task(*task.ParentUniqueID); parent != nil {
			phase := task.Debug.Duration
			return o.resumePending(ctx, parent, phase, processing)
		}
	}
	return nil
}

// execute runs the agent with timing, records the result on success, and
// always flushes the phase's debug entry. A nil result leaves the task
// pending: agents that dispatched children and must wait for a later
// request return nil. childDuration is folded into the recorded duration
// so a resumed parent's entry covers the whole phase.
func (o *Orchestrator) execute(ctx context.Context, task *CompressedTask, agent Agent, childDuration float64) error {
	debug := task.Debug
	if debug == nil {
		debug = &TaskDebug{}
		task.Debug = debug
	}
	ctx = WithTaskDebug(ctx, debug)

	var span Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "task.run",
			StringAttr("agent", task.Agent),
			StringAttr("task_unique_id", task.UniqueID))
	}

	o.logger.Debug("task started", "agent", task.Agent, "task_unique_id", task.UniqueID)
	start := time.Now()
	result, runErr := agent.Run(ctx)
	duration := time.Since(start).Seconds()
	debug.Duration = duration + childDuration

	if runErr == nil && result != nil {
		o.compressed.AssignResult(task.UniqueID, result)
	}
	o.compressed.AddDebug(task.UniqueID, debug)

	if span != nil {
		if runErr != nil && !IsUserInput(runErr) {
			span.Error(runErr)
		}
		span.End()
	}
	o.logger.Debug("task settled",
		"agent", task.Agent,
		"task_unique_id", task.UniqueID,
		"duration", duration,
		"suspended", IsUserInput(runErr))
	return runErr
}

// Children returns the children of a task grouped into dispatch batches.
// Each returned task is a deep copy; mutating it does not affect state.
func (o *Orchestrator) Children(uniqueID string) ([][]*CompressedTask, error) {
	return o.compressed.children(uniqueID)
}

// PreviousRootTasks walks the previous-root chain from the latest root,
// most recent first.
func (o *Orchestrator) PreviousRootTasks() []*CompressedTask {
	return o.compressed.previousRootTasks()
}

func (o *Orchestrator) emitMessage(task *CompressedTask, args map[string]any, includeTaskID bool) {
	if o.onMessage == nil {
		return
	}
	content := map[string]any{"agent": task.Agent, "args": args}
	if includeTaskID {
		content["task_unique_id"] = task.UniqueID
	}
	o.onMessage(map[string]any{"type": "message", "content": content})
}

func missingParamsResult(missing []string) string {
	return fmt.Sprintf("<ERROR>Required parameters missing: %s</ERROR>", strings.Join(missing, ", "))
}

// runParallel executes fn(0..n-1) on a bounded worker pool and returns one
// error slot per index. Panics inside fn are recovered into errors so one
// misbehaving agent cannot take down its siblings.
func runParallel(ctx context.Context, n int, fn func(i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	workers := min(n, maxParallelTasks)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				errs[i] = protect(fn, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return errs
}

func protect(fn func(i int) error, i int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panic: %v", p)
		}
	}()
	return fn(i)
}

type stringSet struct {
	mu sync.Mutex
	m  map[string]struct{}
}

func (s *stringSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	return ok
}

func (s *stringSet) tryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; ok {
		return false
	}
	s.m[id] = struct{}{}
	return true
}
