// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "warn", "json"), "poller")

	l.Info().Msg("hidden")
	l.Warn().Int("connection", 2).Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d: %s", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["component"] != "poller" || rec["message"] != "shown" || rec["level"] != "warn" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty", "json")

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Fatalf("debug should be filtered at info level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("info line missing")
	}
}
