package repl

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) exec(_ context.Context, args []string) error {
	r.calls = append(r.calls, args)
	return r.err
}

func run(t *testing.T, input string, rec *recorder, h *History) string {
	t.Helper()
	var out bytes.Buffer
	r := New(Options{
		Input:    strings.NewReader(input),
		Output:   &out,
		Exec:     rec.exec,
		Commands: []string{"sign", "document pending", "document create"},
		History:  h,
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String()
}

func TestREPL_Exit(t *testing.T) {
	for _, input := range []string{"exit\n", "quit\n", ""} {
		rec := &recorder{}
		out := run(t, input, rec, nil)
		if len(rec.calls) != 0 {
			t.Errorf("input %q executed %v", input, rec.calls)
		}
		if !strings.HasPrefix(out, DefaultPrompt) {
			t.Errorf("input %q: output %q", input, out)
		}
	}
}

func TestREPL_Exec(t *testing.T) {
	rec := &recorder{}
	run(t, "\n  \ndocument pending -o json\nsign 'QU JD'\nexit\nsign never\n", rec, nil)

	want := [][]string{
		{"document", "pending", "-o", "json"},
		{"sign", "QU JD"},
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestREPL_LastLineWithoutNewline(t *testing.T) {
	rec := &recorder{}
	run(t, "sign QUJD", rec, nil)
	if len(rec.calls) != 1 {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestREPL_ErrorsDoNotStopLoop(t *testing.T) {
	rec := &recorder{err: errors.New("agent unreachable")}
	out := run(t, "sign A\nsign B\n", rec, nil)

	if len(rec.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(rec.calls))
	}
	if strings.Count(out, "Error: agent unreachable") != 2 {
		t.Errorf("output = %q", out)
	}
}

func TestREPL_ParseError(t *testing.T) {
	rec := &recorder{}
	out := run(t, "sign \"unterminated\n", rec, nil)
	if len(rec.calls) != 0 || !strings.Contains(out, "unterminated") {
		t.Errorf("calls = %v, output = %q", rec.calls, out)
	}
}

func TestREPL_HelpAndHistory(t *testing.T) {
	rec := &recorder{}
	h := NewHistory("", 0)
	out := run(t, "help\nsign QUJD\nhistory\n", rec, h)

	if !strings.Contains(out, "  document create\n") || !strings.Contains(out, "  exit\n") {
		t.Errorf("help output missing commands: %q", out)
	}
	if !strings.Contains(out, "   2  sign QUJD") {
		t.Errorf("history output: %q", out)
	}
}

func TestREPL_NoExec(t *testing.T) {
	r := New(Options{Input: strings.NewReader(""), Output: &bytes.Buffer{}})
	if err := r.Run(context.Background()); err == nil {
		t.Error("Run() without Exec should fail")
	}
}

func TestREPL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	r := New(Options{Input: strings.NewReader("sign A\n"), Output: &bytes.Buffer{}, Exec: rec.exec})
	if err := r.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if len(rec.calls) != 0 {
		t.Error("cancelled REPL executed a command")
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"sign QUJD", []string{"sign", "QUJD"}, false},
		{"  a\t b  ", []string{"a", "b"}, false},
		{`document create --title "Supply contract" f.pdf`, []string{"document", "create", "--title", "Supply contract", "f.pdf"}, false},
		{`a 'it''s' b`, []string{"a", "its", "b"}, false},
		{`a \"b\"`, []string{"a", `"b"`}, false},
		{`a ''`, []string{"a", ""}, false},
		{`'a\b'`, []string{`a\b`}, false},
		{`"open`, nil, true},
		{`a\`, nil, true},
		{"", nil, false},
	}

	for _, tt := range tests {
		got, err := SplitArgs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitArgs(%q) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompleter(t *testing.T) {
	c := NewCompleter([]string{"sign", "document create", "document cosign"})

	got := c.Complete("document c")
	if !reflect.DeepEqual(got, []string{"document cosign", "document create"}) {
		t.Errorf("Complete() = %v", got)
	}
	if got := c.Complete("zzz"); len(got) != 0 {
		t.Errorf("Complete(zzz) = %v", got)
	}
	if got := c.Complete("ex"); !reflect.DeepEqual(got, []string{"exit"}) {
		t.Errorf("builtins not completed: %v", got)
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory("", 3)
	for _, cmd := range []string{"a", "b", "b", "c", "d", "sign --bridge-token x"} {
		h.Add(cmd)
	}

	if got := h.Entries(); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("Entries() = %v", got)
	}
	if h.Get(0) != "d" || h.Get(2) != "b" || h.Get(3) != "" || h.Get(-1) != "" {
		t.Error("Get() returned wrong entries")
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")

	h := NewHistory(path, 0)
	h.Add("sign QUJD")
	h.Add("document pending")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewHistory(path, 0)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries(), h.Entries()) {
		t.Errorf("Entries() = %v", loaded.Entries())
	}

	missing := NewHistory(filepath.Join(t.TempDir(), "none"), 0)
	if err := missing.Load(); err != nil {
		t.Errorf("Load() of missing file error = %v", err)
	}
}
