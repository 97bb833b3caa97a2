// Package runner contains the orchestration core: it reconstructs complete
// assistant messages from streamed fragments, resolves and executes requested
// function calls through the tool registry, feeds results back as new turns
// and re-invokes the model until a final answer emerges, bounded by a
// configurable call-depth limit.
//
// Four entry points mirror the two axes batch/streaming and text/raw:
//
//	Run            batch     -> final answer text
//	RunStream      streaming -> channel of text chunks
//	Generate       batch     -> one raw assistant message, no tool loop
//	GenerateStream streaming -> channel of raw fragments, no tool loop
//
// All per-run mutable state (history, metrics, call-depth stack) lives on a
// Conversation owned by exactly one run at a time.
package runner
