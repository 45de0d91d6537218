package repository

import (
	"errors"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.DB.First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByExamAndUser(examID, userID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.
		Where("exam_id = ? AND user_id = ?", examID, userID).
		Order("attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) FindAnswers(attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Where("attempt_id = ?", attemptID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// ListInProgress returns open attempts for the expiry sweeper. Deadline math
// happens in Go so the query stays portable across dialects.
func (r *AttemptRepository) ListInProgress() ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("status = ?", model.AttemptInProgress).Find(&attempts).Error
	return attempts, err
}

// LockForUpdate adds a row lock when the dialect supports it. SQLite (used
// in tests) serializes writers on its own and rejects FOR UPDATE syntax.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
