package domain

import "strings"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// GenerationJob is the service-side job created by a submission. Only polling
// moves it forward; Complete and Failed are terminal.
type GenerationJob struct {
	ID         string
	Status     JobStatus
	ResultURLs []string
	// Attempts is the number of status polls that produced this snapshot.
	Attempts int
}

// Terminal reports whether no further polling can change the job.
func (j GenerationJob) Terminal() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusFailed
}

// FirstResult returns the first non-blank result URL.
func (j GenerationJob) FirstResult() (string, bool) {
	for _, u := range j.ResultURLs {
		if u = strings.TrimSpace(u); u != "" {
			return u, true
		}
	}
	return "", false
}
