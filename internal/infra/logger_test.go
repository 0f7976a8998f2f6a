package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production")
	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "j-1").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" {
		t.Fatalf("message = %v, want visible", entry["message"])
	}
	if entry["job_id"] != "j-1" {
		t.Fatalf("job_id = %v, want j-1", entry["job_id"])
	}
	if entry["service"] != "imagequeue" {
		t.Fatalf("service = %v, want imagequeue", entry["service"])
	}
}

func TestNewLoggerDevelopmentEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "development")
	logger.Debug().Msg("debug line")
	if !bytes.Contains(buf.Bytes(), []byte("debug line")) {
		t.Fatalf("debug output missing: %q", buf.String())
	}
}
