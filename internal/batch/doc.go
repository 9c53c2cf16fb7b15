// Package batch implements the bounded-concurrency batch generation
// engine: prompt parsing, config clamping, the per-run cancellation
// scope, outcome aggregation, and the orchestrator that drives tasks
// through the scheduler while reporting every lifecycle transition.
package batch
