package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ArtifactStore persists generated bytes and returns a durable public URL.
type ArtifactStore interface {
	Put(ctx context.Context, data []byte, path string) (string, error)
}

// ArtifactPath derives the object key for a generated image. Images tied to
// a subject are grouped under it; others fall back to the job id.
func ArtifactPath(subjectRef, jobID string, now time.Time) string {
	subjectRef = strings.TrimSpace(subjectRef)
	if subjectRef != "" {
		return fmt.Sprintf("subjects/%s/%d.png", subjectRef, now.UnixMilli())
	}
	return fmt.Sprintf("jobs/%s/%d.png", jobID, now.UnixMilli())
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
