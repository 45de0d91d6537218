package model

// swagger:model Answer
type Answer struct {
	BaseModel

	AttemptID        uint   `gorm:"index:idx_answers_attempt_question,unique;not null" json:"attemptId"`
	QuestionID       uint   `gorm:"index:idx_answers_attempt_question,unique;not null" json:"questionId"`
	SelectedOptionID *uint  `json:"selectedOptionId,omitempty"`
	TextAnswer       string `gorm:"type:text" json:"textAnswer,omitempty"`
	IsCorrect        bool   `gorm:"default:false" json:"isCorrect"`
	PointsEarned     int    `gorm:"default:0" json:"pointsEarned"`
}

func (Answer) TableName() string {
	return "answers"
}
