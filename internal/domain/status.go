package domain

import "time"

// StatusView is the point-in-time report polled by UI collaborators.
// QueuePosition is only set while the job is pending and is an estimate,
// not a reservation.
type StatusView struct {
	ID            string    `json:"id"`
	Status        JobStatus `json:"status"`
	SubjectRef    string    `json:"subject_ref,omitempty"`
	ResultRef     string    `json:"result_ref,omitempty"`
	Error         string    `json:"error,omitempty"`
	QueuePosition *int      `json:"queue_position,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStatusView projects a job into its public view.
func NewStatusView(job *Job) *StatusView {
	return &StatusView{
		ID:         job.ID,
		Status:     job.Status,
		SubjectRef: job.SubjectRef,
		ResultRef:  job.ResultRef,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}
