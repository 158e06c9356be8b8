package logger

import (
	"bytes"
	"context"
	"reflect"
	"testing"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf)

	FromContext(WithLogger(context.Background(), l)).Info("stored")
	if buf.Len() == 0 {
		t.Error("logger stored in context was not used")
	}

	if FromContext(context.Background()) != Default() {
		t.Error("FromContext() without a logger should return Default()")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q on empty context", got)
	}
	ctx = WithRequestID(ctx, "01HX6Q3M4K8A9B2C3D4E5F6G7H")
	if got := RequestIDFromContext(ctx); got != "01HX6Q3M4K8A9B2C3D4E5F6G7H" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
}

func TestContextAttrs(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() context.Context
		want []any
	}{
		{"empty", context.Background, nil},
		{"request id", func() context.Context {
			return WithRequestID(context.Background(), "req-1")
		}, []any{"request_id", "req-1"}},
		{"attrs accumulate", func() context.Context {
			ctx := WithAttrs(context.Background(), "document_id", int64(7))
			return WithAttrs(ctx, "file_name", "contract.pdf")
		}, []any{"document_id", int64(7), "file_name", "contract.pdf"}},
		{"request id first", func() context.Context {
			ctx := WithAttrs(context.Background(), "document_id", int64(7))
			return WithRequestID(ctx, "req-2")
		}, []any{"request_id", "req-2", "document_id", int64(7)}},
		{"no-op attrs", func() context.Context {
			return WithAttrs(context.Background())
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContextAttrs(tt.ctx()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ContextAttrs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithAttrs_DoesNotModifyParent(t *testing.T) {
	parent := WithAttrs(context.Background(), "a", 1)
	_ = WithAttrs(parent, "b", 2)
	child := WithAttrs(parent, "c", 3)

	if got := ContextAttrs(parent); !reflect.DeepEqual(got, []any{"a", 1}) {
		t.Errorf("parent attrs = %v", got)
	}
	if got := ContextAttrs(child); !reflect.DeepEqual(got, []any{"a", 1, "c", 3}) {
		t.Errorf("child attrs = %v", got)
	}
}

func TestL(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf)

	ctx := WithLogger(context.Background(), l)
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithAttrs(ctx, "document_id", 7)

	L(ctx).Info("document co-signed")
	entry := decodeEntry(t, &buf)

	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["document_id"] != float64(7) {
		t.Errorf("document_id = %v", entry["document_id"])
	}

	buf.Reset()
	L(WithLogger(context.Background(), l)).Info("bare")
	entry = decodeEntry(t, &buf)
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id logged without one in context")
	}
}
