package handlers

import (
	"net/http"
	"time"
)

func (a *App) ClearQueue(w http.ResponseWriter, r *http.Request) {
	n, err := a.Jobs.ClearQueue(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"cleared": n})
}

// PurgeJobs deletes jobs older than ?older_than (a Go duration such as 72h),
// defaulting to the configured retention.
func (a *App) PurgeJobs(w http.ResponseWriter, r *http.Request) {
	ttl := a.Retention
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "older_than must be a positive duration such as 72h")
			return
		}
		ttl = d
	}
	n, err := a.Jobs.Purge(r.Context(), ttl)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": n, "older_than": ttl.String()})
}
