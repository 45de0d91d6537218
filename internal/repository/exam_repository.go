package repository

import (
	"errors"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
)

// ExamRepository reads the exam/question/option catalog. The catalog is
// maintained by an external CRUD service; this side only consumes it.
type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) FindByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	if err := r.DB.First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	return &exam, nil
}

// QuestionsWithOptions returns the exam's full question set in catalog order,
// options included. Correctness flags stay in the result; stripping them is
// the presenter's job.
func (r *ExamRepository) QuestionsWithOptions(examID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.
		Where("exam_id = ?", examID).
		Order("order_index asc, id asc").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc, id asc")
		}).
		Find(&questions).Error
	return questions, err
}

func (r *ExamRepository) CountQuestions(examID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}
