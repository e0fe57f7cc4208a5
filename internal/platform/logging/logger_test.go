package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"":        LevelInfo,
		"DEBUG":   LevelDebug,
		"warning": LevelWarn,
		" error ": LevelError,
		"verbose": LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%s want %s", raw, got, want)
		}
	}
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo).Named("cache").With("category", "live_overs")

	logger.Debug("dropped at info level")
	logger.WarnContext(context.Background(), "stale value served", "key", "live_overs:91", "error", errors.New("timeout"))

	out := buf.String()
	if strings.Contains(out, "dropped at info level") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	for _, want := range []string{`"logger":"cache"`, `"category":"live_overs"`, `"key":"live_overs:91"`, `"error":"timeout"`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLogger_MirrorReceivesEnabledRecords(t *testing.T) {
	var got []string
	SetMirror(func(_ context.Context, level Level, msg string, args ...any) {
		got = append(got, level.String()+":"+msg)
	})
	t.Cleanup(func() { SetMirror(nil) })

	logger := NewJSONWriter(&bytes.Buffer{}, LevelInfo)
	logger.Debug("dropped")
	logger.InfoContext(context.Background(), "cache miss", "category", "live_overs")
	logger.Warn("stale served")

	if len(got) != 2 || got[0] != "info:cache miss" || got[1] != "warn:stale served" {
		t.Fatalf("unexpected mirrored records: %v", got)
	}
}
