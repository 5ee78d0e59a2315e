package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heapwalk/internal/ptr"
	"heapwalk/internal/snapshot"
)

// heapwalk runs one command line against a private config and archive.
func heapwalk(t *testing.T, dir string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	cfg := filepath.Join(dir, "heapwalk.toml")
	if _, err := os.Stat(cfg); os.IsNotExist(err) {
		if err := os.WriteFile(cfg, []byte("[image]\nformat = \"cbor\"\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	full := append([]string{"--config", cfg, "--color", "off", "--archive", filepath.Join(dir, "images.db")}, args...)
	var out, errb bytes.Buffer
	code = run(context.Background(), full, &out, &errb)
	return out.String(), errb.String(), code
}

func synthImage(t *testing.T, dir string, elems string) string {
	t.Helper()
	path := filepath.Join(dir, "synth.img")
	out, errOut, code := heapwalk(t, dir, "synth", "--out", path, "--elems", elems)
	if code != 0 {
		t.Fatalf("synth exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "(cbor,") {
		t.Errorf("synth did not use the configured codec: %q", out)
	}
	return path
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    ptr.Value
		wantErr bool
	}{
		{"null", ptr.Null, false},
		{"int:21", ptr.MustScalar(21), false},
		{"int:-1", ptr.MustScalar(-1), false},
		{"@0x10004", ptr.Skew(0x10004), false},
		{"0x1003", ptr.Value(0x1003), false},
		{"42", ptr.Value(42), false},
		{"@0x10002", 0, true},
		{"int:99999999999", 0, true},
		{"int:1073741824", 0, true},
		{"0x1_0000_0000", 0, true},
		{"word", 0, true},
	}
	for _, tt := range tests {
		got, err := parseValue(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseValue(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadColorMode(t *testing.T) {
	for in, want := range map[string]colorMode{"": colorAuto, "AUTO": colorAuto, "on": colorOn, " off ": colorOff} {
		got, err := readColorMode(in)
		if err != nil || got != want {
			t.Errorf("readColorMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readColorMode("always"); err == nil {
		t.Error("readColorMode accepted an unknown mode")
	}
	if useColor(colorAuto, &bytes.Buffer{}) {
		t.Error("auto mode colored a non-terminal")
	}
}

func TestSynthDumpVerify(t *testing.T) {
	dir := t.TempDir()
	img := synthImage(t, dir, "3")

	out, errOut, code := heapwalk(t, dir, "dump", img)
	if code != 0 {
		t.Fatalf("dump exit %d: %s", code, errOut)
	}
	for _, want := range []string{
		"[RTS] Closure table: 1",
		"[RTS] Static roots: 1",
		"[RTS] Heap begin=0x",
		"<Array len=0x3",
		"<Blob len=0x8>",
		"<Closure size=0x2>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output lacks %q:\n%s", want, out)
		}
	}

	out, errOut, code = heapwalk(t, dir, "verify", img, img)
	if code != 0 {
		t.Fatalf("verify exit %d: %s%s", code, out, errOut)
	}
	if strings.Count(out, "ok ") != 2 || !strings.Contains(out, "6 objects") {
		t.Errorf("verify output = %q", out)
	}
}

func TestVerifyReportsCorruptImage(t *testing.T) {
	dir := t.TempDir()
	path := synthImage(t, dir, "2")
	img, codec, err := snapshot.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(img.Data[img.HeapBase-img.Base:], 0xDEAD)
	bad := filepath.Join(dir, "bad.img")
	if err := snapshot.WriteFile(bad, img, codec); err != nil {
		t.Fatal(err)
	}

	out, errOut, code := heapwalk(t, dir, "verify", "-j", "2", path, bad)
	if code != 1 {
		t.Fatalf("verify exit %d, want 1: %s", code, out)
	}
	if !strings.Contains(out, "FAIL "+bad) || !strings.Contains(out, "RTS2001") {
		t.Errorf("verify output = %q", out)
	}
	if !strings.Contains(out, "ok   "+path) {
		t.Errorf("good image not reported ok: %q", out)
	}
	if !strings.Contains(errOut, "1 of 2 images failed") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestPrintAndTree(t *testing.T) {
	dir := t.TempDir()
	img := synthImage(t, dir, "2")

	out, errOut, code := heapwalk(t, dir, "print", img, "int:-1", "null")
	if code != 0 {
		t.Fatalf("print exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "[RTS] <Scalar 0xfffffffe>") || !strings.Contains(out, "[RTS] <Scalar 0x0>") {
		t.Errorf("print output = %q", out)
	}

	out, errOut, code = heapwalk(t, dir, "tree", img)
	if code != 0 {
		t.Fatalf("tree exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "closure 0:") || !strings.Contains(out, "static root 0:") {
		t.Errorf("tree output lacks root headers:\n%s", out)
	}
	if !strings.Contains(out, "  [0] ") {
		t.Errorf("tree output lacks indented children:\n%s", out)
	}

	if _, _, code := heapwalk(t, dir, "print", img, "@0x3"); code == 0 {
		t.Error("print accepted a misaligned address")
	}
}

func TestStatsJSON(t *testing.T) {
	dir := t.TempDir()
	img := synthImage(t, dir, "4")
	out, errOut, code := heapwalk(t, dir, "stats", "--format", "json", img)
	if code != 0 {
		t.Fatalf("stats exit %d: %s", code, errOut)
	}
	var p statsPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("stats json: %v\n%s", err, out)
	}
	if p.Objects != 7 {
		t.Errorf("objects = %d, want 7", p.Objects)
	}
	var bits int
	for _, e := range p.Tags {
		if e.Tag == "Bits32" {
			bits = e.Count
		}
	}
	if bits != 4 {
		t.Errorf("Bits32 count = %d, want 4", bits)
	}

	out, _, code = heapwalk(t, dir, "stats", img)
	if code != 0 || !strings.Contains(out, "TAG") || !strings.Contains(out, "Closure") {
		t.Errorf("stats table = %q", out)
	}
}

func TestArchiveCommands(t *testing.T) {
	dir := t.TempDir()
	if _, errOut, code := heapwalk(t, dir, "synth", "--store", "demo", "--elems", "1"); code != 0 {
		t.Fatalf("synth --store: %s", errOut)
	}
	out, _, code := heapwalk(t, dir, "archive", "list")
	if code != 0 || !strings.Contains(out, "demo") || !strings.Contains(out, "cbor") {
		t.Fatalf("archive list = %q", out)
	}
	if out, errOut, code := heapwalk(t, dir, "verify", "db:demo"); code != 0 {
		t.Fatalf("verify db:demo exit %d: %s%s", code, out, errOut)
	}

	extracted := filepath.Join(dir, "demo.img")
	if _, errOut, code := heapwalk(t, dir, "archive", "get", "demo", "--out", extracted, "--format", "msgpack"); code != 0 {
		t.Fatalf("archive get: %s", errOut)
	}
	if _, codec, err := snapshot.ReadFile(extracted); err != nil || codec.Name() != "msgpack" {
		t.Fatalf("extracted image: codec=%v err=%v", codec, err)
	}

	if _, errOut, code := heapwalk(t, dir, "archive", "rm", "demo"); code != 0 {
		t.Fatalf("archive rm: %s", errOut)
	}
	out, _, _ = heapwalk(t, dir, "archive", "list")
	if !strings.Contains(out, "archive is empty") {
		t.Errorf("archive list after rm = %q", out)
	}
	if _, _, code := heapwalk(t, dir, "dump", "db:demo"); code == 0 {
		t.Error("dump of a removed image succeeded")
	}
}

func TestTraceOutput(t *testing.T) {
	dir := t.TempDir()
	img := synthImage(t, dir, "1")
	tracePath := filepath.Join(dir, "trace.ndjson")
	if _, errOut, code := heapwalk(t, dir, "--trace", tracePath, "--trace-level", "detail", "verify", img); code != 0 {
		t.Fatalf("verify exit %d: %s", code, errOut)
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"heapwalk verify", "verify-image", "walk-roots"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("trace lacks %q:\n%s", want, data)
		}
	}
}

func TestBadConfigFailsCommandButNotVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "heapwalk.toml"), []byte("[dump]\ncolour = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, errOut, code := heapwalk(t, dir, "archive", "list"); code == 0 || !strings.Contains(errOut, "unknown key") {
		t.Errorf("bad config: exit %d, stderr %q", code, errOut)
	}
	out, _, code := heapwalk(t, dir, "version", "--format", "json")
	if code != 0 {
		t.Fatalf("version exit %d", code)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil || p.Tool != "heapwalk" {
		t.Errorf("version payload = %+v, %v", p, err)
	}
}

func TestTableAlignsWideRunes(t *testing.T) {
	tb := &table{header: []string{"NAME", "SIZE"}, right: map[int]bool{1: true}}
	tb.add("日本", "7")
	tb.add("heap", "1234")
	var buf bytes.Buffer
	if err := tb.write(&buf, newStyles(true).header); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"NAME  SIZE",
		"日本     7",
		"heap  1234",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFormatOptionsZeroMeansNone(t *testing.T) {
	s := &session{}
	s.cfg.Dump.SinkCapacity = 200
	opts := s.formatOptions()
	if opts.ArrayPreview != -1 || opts.InlineDepth != -1 || opts.Capacity != 200 {
		t.Errorf("formatOptions = %+v", opts)
	}
}

func TestVersionReportsImageFormats(t *testing.T) {
	dir := t.TempDir()
	out, _, code := heapwalk(t, dir, "version", "--format", "json", "--full")
	if code != 0 {
		t.Fatalf("version exit %d", code)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if p.ImageSchema != snapshot.SchemaVersion || p.ObjectTags != 13 || p.WordSize != 4 {
		t.Errorf("payload = %+v", p)
	}
	if strings.Join(p.Codecs, ",") != "msgpack,cbor" || p.GitCommit != "unknown" || p.BuildDate != "unknown" {
		t.Errorf("payload = %+v", p)
	}

	out, _, code = heapwalk(t, dir, "version")
	if code != 0 {
		t.Fatalf("version exit %d", code)
	}
	for _, want := range []string{"heapwalk ", "image schema  1\n", "codecs        msgpack, cbor (default msgpack)\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("pretty version %q lacks %q", out, want)
		}
	}
	if strings.Contains(out, "commit") {
		t.Errorf("pretty version shows commit without --hash: %q", out)
	}
}
