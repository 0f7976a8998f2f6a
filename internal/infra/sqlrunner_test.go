package infra

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestSplitMarker(t *testing.T) {
	query := "--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;\n"
	marker, body, err := SplitMarker(query)
	if err != nil {
		t.Fatalf("SplitMarker error: %v", err)
	}
	if marker != "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.TrimSpace(body) != "select 1;" {
		t.Fatalf("body = %q, want select 1;", body)
	}
}

func TestSplitMarkerRejectsMissingMarker(t *testing.T) {
	for _, query := range []string{"", "select 1", "--sql not-a-uuid\nselect 1"} {
		if _, _, err := SplitMarker(query); err == nil {
			t.Fatalf("expected error for %q", query)
		}
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatalf("wrapped pgx.ErrNoRows not detected")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatalf("unrelated error reported as no rows")
	}
}
