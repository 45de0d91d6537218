package model

import "time"

// IssuanceJob is a queued notification to the certificate issuer
// collaborator. The pass/fail outcome and the certificate row are already
// persisted when a job is enqueued; the job only carries the downstream
// delivery, which may fail and be retried.
type IssuanceJob struct {
	CertificateID uint      `json:"certificateId"`
	AttemptID     uint      `json:"attemptId"`
	Attempts      int       `json:"attempts"`
	NextRunAt     time.Time `json:"nextRunAt"`
}
