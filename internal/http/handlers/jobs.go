package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"imagequeue/internal/jobs"
)

type createJobRequest struct {
	SubjectRef string `json:"subject_ref"`
	OwnerRef   string `json:"owner_ref"`
	Prompt     string `json:"prompt"`
}

// CreateJob enqueues a job and, unless ?process=false, starts processing it
// in the background.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Jobs.CreateJob(r.Context(), jobs.CreateJobInput{
		SubjectRef: req.SubjectRef,
		OwnerRef:   req.OwnerRef,
		Prompt:     req.Prompt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if boolParam(r, "process", true) {
		a.Jobs.TriggerProcessing(job.ID)
	}
	view, err := a.Jobs.GetStatus(r.Context(), job.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, view)
}

// ProcessJob triggers processing. With ?wait=true the request blocks until
// the job finishes or the turn times out.
func (a *App) ProcessJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if boolParam(r, "wait", false) {
		view, err := a.Jobs.Process(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusOK, view)
		return
	}

	view, err := a.Jobs.GetStatus(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !view.Status.Terminal() {
		a.Jobs.TriggerProcessing(id)
	}
	a.json(w, http.StatusAccepted, view)
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	view, err := a.Jobs.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func boolParam(r *http.Request, name string, fallback bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
