package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"user@example.com":    "u***@example.com",
		"a@b.io":              "a***@b.io",
		"élodie@uni.fr":       "é***@uni.fr",
		"not-an-email":        "***",
		"@missing-local.com":  "***",
		"x.y+tag@sub.dom.org": "x***@sub.dom.org",
	}

	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCritical_TagsEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	Critical(log, "token store failure", String("endpoint", "/auth/password-reset/request"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["severity"] != "critical" || fields["alert"] != true {
		t.Fatalf("missing alert tags: %v", fields)
	}
}
