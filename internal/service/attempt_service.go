package service

import (
	"errors"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService is the eligibility gate: it admits or rejects start
// requests and owns the abandon/expire transitions.
type AttemptService struct {
	ExamRepo    *repository.ExamRepository
	AttemptRepo *repository.AttemptRepository
	DB          *gorm.DB
}

func NewAttemptService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, db *gorm.DB) *AttemptService {
	return &AttemptService{
		ExamRepo:    examRepo,
		AttemptRepo: attemptRepo,
		DB:          db,
	}
}

type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// StartAttempt runs the full eligibility check and the attempt insert in one
// transaction. Two concurrent starts for the same (exam, user) serialize on
// the row lock; if a writer slips through anyway, the unique active-key
// index rejects it and the loser gets the existing attempt's ID back.
func (s *AttemptService) StartAttempt(examID, userID uint, meta RequestMeta) (*model.Attempt, error) {
	var created *model.Attempt

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var exam model.Exam
		if err := tx.First(&exam, examID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrExamNotFound
			}
			return err
		}
		if !exam.IsActive || !exam.IsPublished {
			return util.ErrExamUnavailable
		}

		now := time.Now()
		if !exam.AvailableAt(now) {
			return util.ErrExamUnavailable
		}

		var prior []model.Attempt
		if err := repository.LockForUpdate(tx).
			Where("exam_id = ? AND user_id = ?", examID, userID).
			Find(&prior).Error; err != nil {
			return err
		}

		// Abandoned and expired attempts still consume the quota; only an
		// open attempt blocks exclusivity.
		highest := 0
		for _, p := range prior {
			if p.Status == model.AttemptInProgress {
				return &util.ActiveAttemptError{AttemptID: p.ID}
			}
			if p.AttemptNumber > highest {
				highest = p.AttemptNumber
			}
		}
		if exam.MaxAttempts > 0 && len(prior) >= exam.MaxAttempts {
			return util.ErrAttemptLimitExceeded
		}

		questionCount, err := s.examQuestionCount(tx, examID)
		if err != nil {
			return err
		}

		activeKey := model.ActiveKeyFor(examID, userID)
		attempt := &model.Attempt{
			ExamID:         examID,
			UserID:         userID,
			AttemptNumber:  highest + 1,
			Status:         model.AttemptInProgress,
			TotalQuestions: questionCount,
			StartedAt:      now,
			IPAddress:      meta.IPAddress,
			UserAgent:      meta.UserAgent,
			ActiveKey:      &activeKey,
		}
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}

		created = attempt
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race after the lock released (e.g. read-committed
			// isolation). Report the attempt that won.
			if existing := s.findActive(examID, userID); existing != nil {
				return nil, &util.ActiveAttemptError{AttemptID: existing.ID}
			}
			return nil, util.ErrAttemptAlreadyActive
		}
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("attempt started",
		zap.Uint("examId", examID),
		zap.Uint("userId", userID),
		zap.Uint("attemptId", created.ID),
		zap.Int("attemptNumber", created.AttemptNumber),
	)
	return created, nil
}

// AbandonAttempt transitions in_progress → abandoned. The attempt keeps
// consuming quota but no longer blocks a new start.
func (s *AttemptService) AbandonAttempt(attemptID, userID uint) (*model.Attempt, error) {
	var abandoned *model.Attempt

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		if err := repository.LockForUpdate(tx).First(&attempt, attemptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrAttemptNotFound
			}
			return err
		}
		if attempt.UserID != userID {
			return util.ErrPermissionDenied
		}
		if attempt.Terminal() {
			return util.ErrAttemptAlreadyFinalized
		}

		now := time.Now()
		attempt.Status = model.AttemptAbandoned
		attempt.CompletedAt = &now
		attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt).Seconds())
		attempt.ActiveKey = nil

		if err := tx.Save(&attempt).Error; err != nil {
			return err
		}
		abandoned = &attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsFinalized.WithLabelValues(string(model.AttemptAbandoned)).Inc()
	return abandoned, nil
}

// ExpireOverdue closes in-progress attempts whose deadline passed without a
// submission. Runs from the background sweeper; each attempt is finalized in
// its own transaction so one failure does not hold up the rest.
func (s *AttemptService) ExpireOverdue() (int, error) {
	open, err := s.AttemptRepo.ListInProgress()
	if err != nil {
		return 0, err
	}

	expired := 0
	now := time.Now()
	for i := range open {
		attempt := open[i]
		exam, err := s.ExamRepo.FindByID(attempt.ExamID)
		if err != nil {
			logger.Log.Error("expiry sweep: exam lookup failed",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		if !now.After(attempt.Deadline(exam)) {
			continue
		}

		err = s.DB.Transaction(func(tx *gorm.DB) error {
			var fresh model.Attempt
			if err := repository.LockForUpdate(tx).First(&fresh, attempt.ID).Error; err != nil {
				return err
			}
			if fresh.Terminal() {
				return nil // submitted in the meantime
			}
			fresh.Status = model.AttemptExpired
			fresh.CompletedAt = &now
			fresh.TimeSpentSeconds = int(now.Sub(fresh.StartedAt).Seconds())
			fresh.ActiveKey = nil
			return tx.Save(&fresh).Error
		})
		if err != nil {
			logger.Log.Error("expiry sweep: finalize failed",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		monitoring.AttemptsFinalized.WithLabelValues(string(model.AttemptExpired)).Inc()
		expired++
	}
	return expired, nil
}

func (s *AttemptService) examQuestionCount(tx *gorm.DB, examID uint) (int, error) {
	var count int64
	if err := tx.Model(&model.Question{}).Where("exam_id = ?", examID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *AttemptService) findActive(examID, userID uint) *model.Attempt {
	var attempt model.Attempt
	key := model.ActiveKeyFor(examID, userID)
	if err := s.DB.Where("active_key = ?", key).First(&attempt).Error; err != nil {
		return nil
	}
	return &attempt
}
