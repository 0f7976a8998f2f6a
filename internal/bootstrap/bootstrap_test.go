package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imagequeue/internal/domain"
	"imagequeue/internal/infra"
	"imagequeue/internal/jobs"
)

func testConfig(t *testing.T, backend string) *infra.Config {
	t.Helper()
	dir := t.TempDir()
	return &infra.Config{
		StoreBackend:      backend,
		SQLitePath:        filepath.Join(dir, "jobs.db"),
		ArtifactBackend:   infra.ArtifactFilesystem,
		StoragePath:       filepath.Join(dir, "artifacts"),
		StorageBaseURL:    "http://localhost/static",
		SubjectImageField: "image_url",
		JobMaxWait:        5 * time.Second,
		JobZombieTimeout:  time.Minute,
		JobMinSpacing:     time.Millisecond,
		JobPollInterval:   10 * time.Millisecond,
		JobHeartbeat:      time.Second,
		GenMaxRetries:     1,
		GenBaseDelay:      time.Millisecond,
	}
}

func TestEndToEnd(t *testing.T) {
	for _, backend := range []string{infra.BackendMemory, infra.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			logger := infra.NopLogger()

			b, err := OpenBackend(ctx, cfg, logger)
			if err != nil {
				t.Fatalf("OpenBackend: %v", err)
			}
			defer b.Close()

			artifacts, err := OpenArtifacts(ctx, cfg)
			if err != nil {
				t.Fatalf("OpenArtifacts: %v", err)
			}
			if artifacts.StaticDir == "" {
				t.Fatalf("filesystem artifacts must expose a static dir")
			}

			svc := NewService(cfg, b, artifacts.Store, NewGenerator(ctx, cfg, b, logger), logger)
			job, err := svc.CreateJob(ctx, jobs.CreateJobInput{OwnerRef: "u1", Prompt: "a lighthouse"})
			if err != nil {
				t.Fatalf("CreateJob: %v", err)
			}
			view, err := svc.Process(ctx, job.ID)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if view.Status != domain.JobStatusCompleted {
				t.Fatalf("status = %s, want completed (error %q)", view.Status, view.Error)
			}
			if !strings.HasPrefix(view.ResultRef, "http://localhost/static/jobs/"+job.ID+"/") {
				t.Fatalf("result ref = %q", view.ResultRef)
			}
			rel := strings.TrimPrefix(view.ResultRef, "http://localhost/static/")
			if _, err := os.Stat(filepath.Join(artifacts.StaticDir, filepath.FromSlash(rel))); err != nil {
				t.Fatalf("artifact not written: %v", err)
			}
			if b.Ping != nil {
				if err := b.Ping(ctx); err != nil {
					t.Fatalf("Ping: %v", err)
				}
			}
		})
	}
}

func TestOpenBackendRejectsUnknown(t *testing.T) {
	cfg := testConfig(t, "cassandra")
	if _, err := OpenBackend(context.Background(), cfg, infra.NopLogger()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
