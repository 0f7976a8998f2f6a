package repo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"imagequeue/internal/domain"
)

func TestTransitionFilterCarriesStatusAndVersion(t *testing.T) {
	f := transitionFilter("job-1", domain.JobStatusPending, 7)
	if f["_id"] != "job-1" || f["status"] != "pending" || f["version"] != int64(7) {
		t.Fatalf("filter = %#v", f)
	}
}

func TestStatusUpdateSetsOnlyProvidedFields(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	u := statusUpdate(domain.JobStatusCompleted, domain.WithResult("https://cdn/a.png"), now)

	set, ok := u["$set"].(bson.M)
	if !ok {
		t.Fatalf("$set missing: %#v", u)
	}
	if set["status"] != "completed" || set["resultRef"] != "https://cdn/a.png" {
		t.Fatalf("$set = %#v", set)
	}
	if _, ok := set["error"]; ok {
		t.Fatalf("error must not be written when unset")
	}
	if got := set["updatedAt"].(time.Time); !got.Equal(now) {
		t.Fatalf("updatedAt = %s, want %s", got, now)
	}
	inc, ok := u["$inc"].(bson.M)
	if !ok || inc["version"] != 1 {
		t.Fatalf("$inc = %#v, want version 1", u["$inc"])
	}
}
