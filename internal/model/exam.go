package model

import "time"

// CEU policy selects how certificate credits are derived from a passing
// attempt. Configured per exam, never hard-coded in the resolver.
type CEUPolicy string

const (
	// CEUPercentageTenth awards floor(percentage / 10) credits.
	CEUPercentageTenth CEUPolicy = "percentage_tenth"
	// CEUFixed awards the exam's CEUFixedCredits regardless of score.
	CEUFixed CEUPolicy = "fixed"
)

// swagger:model Exam
type Exam struct {
	BaseModel

	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	DurationMinutes  int        `gorm:"not null" json:"durationMinutes"`
	PassingScore     int        `gorm:"not null" json:"passingScore"` // percentage threshold
	MaxAttempts      int        `gorm:"default:1" json:"maxAttempts"`
	ShuffleQuestions bool       `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleOptions   bool       `gorm:"default:false" json:"shuffleOptions"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	IsPublished      bool       `gorm:"default:false;index" json:"isPublished"`
	IsActive         bool       `gorm:"default:true;index" json:"isActive"`

	// Late submissions within the grace window are still accepted.
	GracePeriodSeconds int `gorm:"default:0" json:"gracePeriodSeconds"`

	CEUPolicyName   CEUPolicy `gorm:"size:32;default:'percentage_tenth'" json:"ceuPolicy"`
	CEUFixedCredits float64   `gorm:"default:0" json:"ceuFixedCredits"`
	ValidityMonths  int       `gorm:"default:12" json:"validityMonths"`
}

func (Exam) TableName() string {
	return "exams"
}

// AvailableAt reports whether the exam's availability window admits t.
// A nil bound is open-ended on that side.
func (e *Exam) AvailableAt(t time.Time) bool {
	if e.StartDate != nil && t.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && t.After(*e.EndDate) {
		return false
	}
	return true
}
