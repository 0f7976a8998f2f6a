package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("JOB_MIN_SPACING_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Fatalf("StoreBackend = %q, want %q", cfg.StoreBackend, BackendPostgres)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.JobMinSpacing != 10*time.Second {
		t.Fatalf("JobMinSpacing = %s, want 10s", cfg.JobMinSpacing)
	}
	if cfg.JobPollInterval != 5*time.Second {
		t.Fatalf("JobPollInterval = %s, want 5s", cfg.JobPollInterval)
	}
	if cfg.GenMaxRetries != 3 {
		t.Fatalf("GenMaxRetries = %d, want 3", cfg.GenMaxRetries)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigRequiresBackendDSN(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		env     map[string]string
	}{
		{name: "postgres", backend: BackendPostgres, env: map[string]string{"DATABASE_URL": ""}},
		{name: "mongo", backend: BackendMongo, env: map[string]string{"MONGO_URI": ""}},
		{name: "unknown", backend: "dynamo"},
		{name: "minio without endpoint", backend: BackendMemory, env: map[string]string{"ARTIFACT_BACKEND": ArtifactMinIO, "MINIO_ENDPOINT": ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", tc.backend)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for backend %q", tc.backend)
			}
		})
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("JOB_ZOMBIE_TIMEOUT_SECONDS", "120")
	t.Setenv("GEN_BASE_DELAY_MS", "250")
	t.Setenv("JOB_RETENTION_HOURS", "72")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobZombieTimeout != 2*time.Minute {
		t.Fatalf("JobZombieTimeout = %s, want 2m", cfg.JobZombieTimeout)
	}
	if cfg.GenBaseDelay != 250*time.Millisecond {
		t.Fatalf("GenBaseDelay = %s, want 250ms", cfg.GenBaseDelay)
	}
	if cfg.JobRetention != 72*time.Hour {
		t.Fatalf("JobRetention = %s, want 72h", cfg.JobRetention)
	}
	if !cfg.MinIOUseSSL {
		t.Fatalf("MinIOUseSSL = false, want true")
	}
}

func TestLoadConfigRejectsInvalidTimings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "heartbeat equals zombie timeout", env: map[string]string{"JOB_HEARTBEAT_SECONDS": "300", "JOB_ZOMBIE_TIMEOUT_SECONDS": "300"}},
		{name: "heartbeat exceeds zombie timeout", env: map[string]string{"JOB_HEARTBEAT_SECONDS": "90", "JOB_ZOMBIE_TIMEOUT_SECONDS": "60"}},
		{name: "zero heartbeat", env: map[string]string{"JOB_HEARTBEAT_SECONDS": "0"}},
		{name: "zero poll interval", env: map[string]string{"JOB_POLL_INTERVAL_SECONDS": "0"}},
		{name: "negative spacing", env: map[string]string{"JOB_MIN_SPACING_SECONDS": "-1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", BackendMemory)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %v", tc.env)
			}
		})
	}
}

func TestLoadConfigAllowsZeroSpacingAndWait(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("JOB_MIN_SPACING_SECONDS", "0")
	t.Setenv("JOB_MAX_WAIT_SECONDS", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobMinSpacing != 0 || cfg.JobMaxWait != 0 {
		t.Fatalf("JobMinSpacing = %s, JobMaxWait = %s, want 0 and 0", cfg.JobMinSpacing, cfg.JobMaxWait)
	}
}
