package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArtifactPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ArtifactPath("profile-7", "job-1", now); got != "subjects/profile-7/1700000000123.png" {
		t.Fatalf("ArtifactPath(subject) = %q", got)
	}
	if got := ArtifactPath("  ", "job-1", now); got != "jobs/job-1/1700000000123.png" {
		t.Fatalf("ArtifactPath(no subject) = %q", got)
	}
}

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.Put(context.Background(), []byte("img"), "/subjects/p1/1.png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://localhost:8080/static/subjects/p1/1.png" {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "subjects", "p1", "1.png"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "img" {
		t.Fatalf("data = %q, want img", data)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "../escape.png", "a/../../escape.png", "."} {
		if _, err := store.Put(context.Background(), []byte("x"), key); err == nil {
			t.Fatalf("Put(%q) succeeded, want error", key)
		}
	}
}

func TestMinIOStoreObjectURL(t *testing.T) {
	store, err := NewMinIOStore(MinIOOptions{Endpoint: "minio.local:9000", Bucket: "images", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("NewMinIOStore: %v", err)
	}
	if got := store.objectURL("jobs/j1/1.png"); got != "http://minio.local:9000/images/jobs/j1/1.png" {
		t.Fatalf("objectURL = %q", got)
	}

	store, err = NewMinIOStore(MinIOOptions{Endpoint: "minio.local:9000", Bucket: "images", PublicURL: "https://cdn.example.com/"})
	if err != nil {
		t.Fatalf("NewMinIOStore: %v", err)
	}
	if got := store.objectURL("jobs/j1/1.png"); got != "https://cdn.example.com/images/jobs/j1/1.png" {
		t.Fatalf("objectURL = %q", got)
	}
}

func TestNewMinIOStoreRequiresEndpoint(t *testing.T) {
	if _, err := NewMinIOStore(MinIOOptions{}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
