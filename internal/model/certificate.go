package model

import "time"

// swagger:model Certificate
type Certificate struct {
	BaseModel

	UserID    uint `gorm:"index;not null" json:"userId"`
	ExamID    uint `gorm:"index;not null" json:"examId"`
	AttemptID uint `gorm:"uniqueIndex;not null" json:"attemptId"`

	Score      int     `json:"score"`
	Percentage int     `json:"percentage"`
	CEUCredits float64 `json:"ceuCredits"`

	IssuedDate time.Time `json:"issuedDate"`
	ExpiryDate time.Time `json:"expiryDate"`

	VerificationCode string `gorm:"size:64;uniqueIndex;not null" json:"verificationCode"`
	IsValid          bool   `gorm:"default:true" json:"isValid"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// ExpiredAt reports whether the certificate is past its validity window at t.
func (c *Certificate) ExpiredAt(t time.Time) bool {
	return t.After(c.ExpiryDate)
}
