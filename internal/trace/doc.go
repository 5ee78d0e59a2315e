// Package trace records what heapwalk does while it loads, checks and
// dumps heap images.
//
// Tracing is off unless the --trace flags ask for it:
//
//	heapwalk verify --trace=- --trace-level=detail a.img b.img
//
// A Tracer receives Events. NopTracer drops them, StreamTracer writes them
// as text or NDJSON, RingTracer keeps the most recent ones for a post-mortem
// dump and MultiTracer fans out to several tracers.
//
// Events carry a Scope: ScopeCommand for one CLI invocation, ScopePhase for
// a runtime phase (scan, walk, dump), ScopeImage for work on one image file
// and ScopeObject for per-object events. The Level decides which scopes are
// emitted.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "scan", 0)
//	defer span.End("")
//
// The walker and the scanner never trace; they stay allocation free.
package trace
