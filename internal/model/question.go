package model

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	FreeText     QuestionType = "free_text"
)

// swagger:model Question
type Question struct {
	BaseModel

	ExamID     uint         `gorm:"index;not null" json:"examId"`
	Text       string       `gorm:"type:text;not null" json:"text"`
	Type       QuestionType `gorm:"size:32;default:'single_choice'" json:"type"`
	Points     int          `gorm:"default:1" json:"points"`
	OrderIndex int          `gorm:"default:0" json:"orderIndex"`

	Options []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// AutoScorable reports whether the scorer can grade the question without a
// manual override. Free-text answers are recorded but score zero.
func (q *Question) AutoScorable() bool {
	return q.Type == SingleChoice || q.Type == TrueFalse
}
