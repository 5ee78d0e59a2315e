package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of an operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of an operation.
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
	// KindHeartbeat is a periodic liveness signal during long batches.
	KindHeartbeat
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeCommand is one CLI command.
	ScopeCommand Scope = iota + 1
	// ScopePhase is a runtime phase: scan, walk, dump, load.
	ScopePhase
	// ScopeImage is the work on one heap image.
	ScopeImage
	// ScopeObject is a single heap object.
	ScopeObject
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeCommand:
		return "command"
	case ScopePhase:
		return "phase"
	case ScopeImage:
		return "image"
	case ScopeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number
	Kind     Kind              // event kind
	Scope    Scope             // granularity
	SpanID   uint64            // span identifier
	ParentID uint64            // parent span, 0 for roots
	Name     string            // e.g. "scan", "image:heap.img"
	Detail   string            // optional detail message
	Extra    map[string]string // key-value annotations
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	})
}
