package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "error", "phase", "detail", "debug"} {
		l, err := ParseLevel(strings.ToUpper(s))
		if err != nil || l.String() != s {
			t.Errorf("ParseLevel(%q) = %v, %v", s, l, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("ParseLevel accepted an unknown level")
	}
}

func TestLevelScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeCommand, false},
		{LevelError, ScopeCommand, false},
		{LevelPhase, ScopePhase, true},
		{LevelPhase, ScopeImage, false},
		{LevelDetail, ScopeImage, true},
		{LevelDetail, ScopeObject, false},
		{LevelDebug, ScopeObject, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	span := Begin(tr, ScopePhase, "scan", 0)
	Begin(tr, ScopeObject, "filtered", span.ID()).End("")
	span.WithExtra("objects", "4").End("ok")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "→ scan") {
		t.Errorf("begin line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "← scan (ok) {dur=") || !strings.Contains(lines[1], "objects=4}") {
		t.Errorf("end line = %q", lines[1])
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeObject, "fault", "RTS2001", 7)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["kind"] != "point" || got["scope"] != "object" || got["detail"] != "RTS2001" || got["parent_id"] != float64(7) {
		t.Errorf("event = %v", got)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopePhase, name, "", 0)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d", r.Len())
	}
	snap := r.Snapshot()
	if snap[0].Name != "c" || snap[2].Name != "e" {
		t.Errorf("snapshot = %v, %v, %v", snap[0].Name, snap[1].Name, snap[2].Name)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Errorf("dump = %q", buf.String())
	}
}

func TestNewAndRing(t *testing.T) {
	tr, err := New(Config{Level: LevelOff, Mode: ModeBoth})
	if err != nil || tr.Enabled() {
		t.Fatalf("off tracer = %v, %v", tr, err)
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopeCommand, "dump", 0).End("")
	r, ok := Ring(tr)
	if !ok || r.Len() != 2 {
		t.Fatalf("ring = %v, %v", r, ok)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("stream = %q", buf.String())
	}
	if _, err := New(Config{Level: LevelPhase, Mode: 9}); err == nil {
		t.Errorf("unknown mode accepted")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Errorf("empty context must yield Nop")
	}
	r := NewRingTracer(8, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	span := Begin(FromContext(ctx), ScopeCommand, "verify", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() || span.ID() == 0 {
		t.Errorf("current span = %d, want %d", CurrentSpan(ctx), span.ID())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHeartbeat(t *testing.T) {
	if StartHeartbeat(Nop, time.Millisecond, nil) != nil {
		t.Fatalf("heartbeat on disabled tracer")
	}
	var out syncBuffer
	tr := NewStreamTracer(&out, LevelPhase, FormatText)
	h := StartHeartbeat(tr, time.Millisecond, func() string { return "2/5 images" })
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "♡ heartbeat (2/5 images)") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	if !strings.Contains(out.String(), "heartbeat (2/5 images)") {
		t.Errorf("no heartbeat in %q", out.String())
	}
}
