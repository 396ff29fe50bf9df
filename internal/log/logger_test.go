package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug, Component: ComponentLedger})
	l.Info("appended", FieldTable, "income")
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "table=income") {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentStorage).Warn("slow")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Fatalf("expected component override: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
	l := Discard()
	if FromContext(NewContext(context.Background(), l)) != l {
		t.Fatalf("expected logger from context")
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithRecord("expense", "2025-01-02", "makan", 5000000).WithPosition("expense", 3)
	if f[FieldPosition] != 3 || f[FieldAmountCents] != int64(5000000) {
		t.Fatalf("unexpected fields: %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatalf("slice length mismatch")
	}
}
