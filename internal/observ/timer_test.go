package observ

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTimerRecordsPhasesInOrder(t *testing.T) {
	tm := NewTimer()
	read := tm.Begin("read")
	tm.End(read, "")
	if err := tm.Measure("verify", func() error { return errors.New("boom") }); err == nil {
		t.Fatal("Measure swallowed the error")
	}

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(r.Phases))
	}
	if r.Phases[0].Name != "read" || r.Phases[1].Name != "verify" {
		t.Errorf("phase order = %q, %q", r.Phases[0].Name, r.Phases[1].Name)
	}
	if r.Phases[1].Note != "failed" {
		t.Errorf("failed phase note = %q", r.Phases[1].Note)
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Errorf("total %v below a phase %v", r.TotalMS, r.Phases[0].DurationMS)
	}
}

func TestTimerIgnoresBadIndex(t *testing.T) {
	tm := NewTimer()
	tm.End(3, "x")
	tm.End(-1, "x")
	if got := len(tm.Report().Phases); got != 0 {
		t.Fatalf("phases = %d", got)
	}
}

func TestNilTimerIsInert(t *testing.T) {
	var tm *Timer
	if err := tm.Measure("x", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatalf("nil timer report = %+v", r)
	}
}

func TestWriteSummary(t *testing.T) {
	tm := NewTimer()
	tm.End(tm.Begin("open"), "cbor")
	var buf bytes.Buffer
	if err := tm.WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"timings:", "open", "// cbor", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
}
