package model

import (
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
	AttemptExpired    AttemptStatus = "expired"
)

// swagger:model Attempt
type Attempt struct {
	BaseModel

	ExamID         uint          `gorm:"index:idx_attempts_exam_user;not null" json:"examId"`
	UserID         uint          `gorm:"index:idx_attempts_exam_user;not null" json:"userId"`
	AttemptNumber  int           `gorm:"not null" json:"attemptNumber"`
	Status         AttemptStatus `gorm:"size:16;default:'in_progress';index" json:"status"`
	TotalQuestions int           `json:"totalQuestions"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Score            int `json:"score"`
	Percentage       int `json:"percentage"`
	CorrectAnswers   int `json:"correctAnswers"`
	TimeSpentSeconds int `json:"timeSpentSeconds"`

	IPAddress string `gorm:"size:45" json:"-"`
	UserAgent string `gorm:"size:255" json:"-"`

	// ActiveKey is "examID:userID" while the attempt is in progress and NULL
	// once terminal. The unique index is what rejects the losing writer when
	// two start requests race.
	ActiveKey *string `gorm:"size:64;uniqueIndex" json:"-"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// ActiveKeyFor builds the uniqueness key guarding one in-progress attempt
// per (exam, user).
func ActiveKeyFor(examID, userID uint) string {
	return fmt.Sprintf("%d:%d", examID, userID)
}

// Terminal reports whether the attempt has reached a final status. Terminal
// attempts are immutable.
func (a *Attempt) Terminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptAbandoned || a.Status == AttemptExpired
}

// Deadline is the last instant a submission is accepted, including the
// exam's grace window.
func (a *Attempt) Deadline(exam *Exam) time.Time {
	d := a.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	if exam.GracePeriodSeconds > 0 {
		d = d.Add(time.Duration(exam.GracePeriodSeconds) * time.Second)
	}
	return d
}
