package service

import (
	"errors"
	"math"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScoringService is the sole authority on scores. Client submissions are
// untrusted input: every answer is graded here against the option table,
// never accepted as a pre-computed result.
type ScoringService struct {
	ExamRepo    *repository.ExamRepository
	AttemptRepo *repository.AttemptRepository
	Outcome     *OutcomeService
	DB          *gorm.DB
}

func NewScoringService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, outcome *OutcomeService, db *gorm.DB) *ScoringService {
	return &ScoringService{
		ExamRepo:    examRepo,
		AttemptRepo: attemptRepo,
		Outcome:     outcome,
		DB:          db,
	}
}

type SubmittedAnswer struct {
	QuestionID       uint   `json:"questionId" binding:"required"`
	SelectedOptionID *uint  `json:"selectedOptionId,omitempty"`
	TextAnswer       string `json:"textAnswer,omitempty"`
}

type QuestionResult struct {
	QuestionID   uint `json:"questionId"`
	Answered     bool `json:"answered"`
	IsCorrect    bool `json:"isCorrect"`
	Points       int  `json:"points"`
	PointsEarned int  `json:"pointsEarned"`
}

type ScoredResult struct {
	AttemptID        uint                `json:"attemptId"`
	Status           model.AttemptStatus `json:"status"`
	Score            int                 `json:"score"`
	MaxScore         int                 `json:"maxScore"`
	Percentage       int                 `json:"percentage"`
	CorrectAnswers   int                 `json:"correctAnswers"`
	TotalQuestions   int                 `json:"totalQuestions"`
	TimeSpentSeconds int                 `json:"timeSpentSeconds"`
	Passed           bool                `json:"passed"`
	CertificateID    *uint               `json:"certificateId,omitempty"`
	Breakdown        []QuestionResult    `json:"breakdown"`
}

// SubmitAnswers grades the submission and finalizes the attempt in a single
// transaction: all answer rows and the status flip commit together or not at
// all. A second call on a finalized attempt is rejected without mutation.
//
// A submission past the deadline (plus grace) is still scored and persisted,
// but the attempt finalizes as expired and the caller gets ErrAttemptExpired
// instead of a result.
func (s *ScoringService) SubmitAnswers(attemptID, userID uint, submitted []SubmittedAnswer) (*ScoredResult, error) {
	// Last write wins for duplicate question IDs in one payload.
	byQuestion := make(map[uint]SubmittedAnswer, len(submitted))
	for _, a := range submitted {
		byQuestion[a.QuestionID] = a
	}

	var (
		result    *ScoredResult
		finalized *model.Attempt
		exam      *model.Exam
	)

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

		var ex model.Exam
		if err := tx.First(&ex, attempt.ExamID).Error; err != nil {
			return err
		}

		var questions []model.Question
		if err := tx.
			Where("exam_id = ?", ex.ID).
			Order("order_index asc, id asc").
			Preload("Options").
			Find(&questions).Error; err != nil {
			return err
		}

		now := time.Now()
		late := now.After(attempt.Deadline(&ex))

		score := 0
		maxScore := 0
		correct := 0
		var rows []model.Answer
		breakdown := make([]QuestionResult, 0, len(questions))

		for _, q := range questions {
			maxScore += q.Points
			qr := QuestionResult{QuestionID: q.ID, Points: q.Points}

			ans, answered := byQuestion[q.ID]
			if answered {
				row := model.Answer{
					AttemptID:        attempt.ID,
					QuestionID:       q.ID,
					SelectedOptionID: ans.SelectedOptionID,
					TextAnswer:       ans.TextAnswer,
				}
				if q.AutoScorable() && ans.SelectedOptionID != nil {
					row.IsCorrect = optionIsCorrect(q.Options, *ans.SelectedOptionID)
				}
				if row.IsCorrect {
					row.PointsEarned = q.Points
					score += q.Points
					correct++
				}
				rows = append(rows, row)

				qr.Answered = true
				qr.IsCorrect = row.IsCorrect
				qr.PointsEarned = row.PointsEarned
			}
			breakdown = append(breakdown, qr)
		}

		percentage := 0
		if maxScore > 0 {
			percentage = int(math.Round(100 * float64(score) / float64(maxScore)))
		}

		status := model.AttemptCompleted
		if late {
			status = model.AttemptExpired
		}

		attempt.Status = status
		attempt.CompletedAt = &now
		attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt).Seconds())
		attempt.Score = score
		attempt.Percentage = percentage
		attempt.CorrectAnswers = correct
		attempt.ActiveKey = nil

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if err := tx.Save(&attempt).Error; err != nil {
			return err
		}

		finalized = &attempt
		exam = &ex
		result = &ScoredResult{
			AttemptID:        attempt.ID,
			Status:           status,
			Score:            score,
			MaxScore:         maxScore,
			Percentage:       percentage,
			CorrectAnswers:   correct,
			TotalQuestions:   len(questions),
			TimeSpentSeconds: attempt.TimeSpentSeconds,
			Breakdown:        breakdown,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsFinalized.WithLabelValues(string(finalized.Status)).Inc()

	if finalized.Status == model.AttemptExpired {
		logger.Log.Warn("late submission scored as expired",
			zap.Uint("attemptId", finalized.ID),
			zap.Int("percentage", finalized.Percentage))
		return nil, util.ErrAttemptExpired
	}

	// The scoring transaction is already committed; a downstream failure in
	// outcome resolution must not undo it.
	outcome, err := s.Outcome.Resolve(finalized, exam)
	if err != nil {
		logger.Log.Error("outcome resolution failed after scoring",
			zap.Uint("attemptId", finalized.ID), zap.Error(err))
		result.Passed = finalized.Percentage >= exam.PassingScore
		return result, nil
	}
	result.Passed = outcome.Passed
	if outcome.Certificate != nil {
		id := outcome.Certificate.ID
		result.CertificateID = &id
	}
	return result, nil
}

func optionIsCorrect(options []model.Option, selectedID uint) bool {
	for _, o := range options {
		if o.ID == selectedID {
			return o.IsCorrect
		}
	}
	// Option does not belong to this question; untrusted input scores zero.
	return false
}
