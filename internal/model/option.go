package model

// swagger:model Option
type Option struct {
	BaseModel

	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	OrderIndex int    `gorm:"default:0" json:"orderIndex"`
}

func (Option) TableName() string {
	return "options"
}
