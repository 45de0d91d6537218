package service

import (
	"testing"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mirrors the canonical end-to-end case: 30-minute exam, 80% to pass, five
// one-point questions, four answered correctly.
func TestSubmitAnswersFourOfFivePasses(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	questions := seedQuestions(t, env.db, exam.ID, 5)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	answers := []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
		{QuestionID: questions[1].ID, SelectedOptionID: correctOptionID(questions[1])},
		{QuestionID: questions[2].ID, SelectedOptionID: correctOptionID(questions[2])},
		{QuestionID: questions[3].ID, SelectedOptionID: correctOptionID(questions[3])},
		{QuestionID: questions[4].ID, SelectedOptionID: wrongOptionID(questions[4])},
	}

	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, answers)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Score)
	assert.Equal(t, 5, result.MaxScore)
	assert.Equal(t, 80, result.Percentage)
	assert.Equal(t, 4, result.CorrectAnswers)
	assert.Equal(t, model.AttemptCompleted, result.Status)
	assert.True(t, result.Passed)
	require.NotNil(t, result.CertificateID)

	// CEU default policy: floor(80/10) = 8.
	var cert model.Certificate
	require.NoError(t, env.db.First(&cert, *result.CertificateID).Error)
	assert.Equal(t, 8.0, cert.CEUCredits)
	assert.Equal(t, 1, env.issuer.calls)

	// Answer rows persisted alongside finalization.
	var rows []model.Answer
	require.NoError(t, env.db.Where("attempt_id = ?", attempt.ID).Find(&rows).Error)
	assert.Len(t, rows, 5)
}

func TestSubmitAnswersRounding(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, func(e *model.Exam) { e.PassingScore = 50 })
	questions := seedQuestions(t, env.db, exam.ID, 3)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	answers := []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
		{QuestionID: questions[1].ID, SelectedOptionID: correctOptionID(questions[1])},
	}

	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, answers)
	require.NoError(t, err)

	// round(100 * 2/3) = 67
	assert.Equal(t, 67, result.Percentage)
	assert.Equal(t, 2, result.CorrectAnswers)
}

func TestSubmitAnswersUnansweredScoreZero(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	questions := seedQuestions(t, env.db, exam.ID, 4)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	// Only one question answered; the rest are skipped entirely.
	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 25, result.Percentage)

	var rows []model.Answer
	require.NoError(t, env.db.Where("attempt_id = ?", attempt.ID).Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestSubmitAnswersFreeTextScoresZero(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, func(e *model.Exam) { e.PassingScore = 100 })
	questions := seedQuestions(t, env.db, exam.ID, 1)

	essay := model.Question{
		ExamID:     exam.ID,
		Text:       "Explain the procedure in your own words",
		Type:       model.FreeText,
		Points:     1,
		OrderIndex: 2,
	}
	require.NoError(t, env.db.Create(&essay).Error)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
		{QuestionID: essay.ID, TextAnswer: "Because the handbook says so."},
	})
	require.NoError(t, err)

	// Free text is recorded but scores zero without a manual override.
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 1, result.CorrectAnswers)

	var row model.Answer
	require.NoError(t, env.db.Where("attempt_id = ? AND question_id = ?", attempt.ID, essay.ID).First(&row).Error)
	assert.False(t, row.IsCorrect)
	assert.Equal(t, 0, row.PointsEarned)
	assert.Equal(t, "Because the handbook says so.", row.TextAnswer)
}

func TestSubmitAnswersForeignOptionScoresZero(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	questions := seedQuestions(t, env.db, exam.ID, 2)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	// Submitting another question's correct option must not score.
	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[1])},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.CorrectAnswers)
}

func TestSubmitAnswersIdempotent(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	questions := seedQuestions(t, env.db, exam.ID, 2)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	answers := []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
	}
	first, err := env.scoring.SubmitAnswers(attempt.ID, 1, answers)
	require.NoError(t, err)

	// A duplicate submission is rejected and changes nothing.
	_, err = env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
		{QuestionID: questions[1].ID, SelectedOptionID: correctOptionID(questions[1])},
	})
	assert.ErrorIs(t, err, util.ErrAttemptAlreadyFinalized)

	var reloaded model.Attempt
	require.NoError(t, env.db.First(&reloaded, attempt.ID).Error)
	assert.Equal(t, first.Score, reloaded.Score)
	assert.Equal(t, first.Percentage, reloaded.Percentage)

	var count int64
	require.NoError(t, env.db.Model(&model.Answer{}).Where("attempt_id = ?", attempt.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubmitAnswersPastDeadlineExpires(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	questions := seedQuestions(t, env.db, exam.ID, 2)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.Attempt{}).
		Where("id = ?", attempt.ID).
		Update("started_at", time.Now().Add(-time.Hour)).Error)

	_, err = env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
	})
	require.ErrorIs(t, err, util.ErrAttemptExpired)

	// The late submission is still recorded and scored as-is, just never
	// accepted as completed.
	var reloaded model.Attempt
	require.NoError(t, env.db.First(&reloaded, attempt.ID).Error)
	assert.Equal(t, model.AttemptExpired, reloaded.Status)
	assert.Equal(t, 1, reloaded.Score)
	require.NotNil(t, reloaded.CompletedAt)

	// No certificate for an expired attempt, whatever the score.
	var certCount int64
	require.NoError(t, env.db.Model(&model.Certificate{}).Where("attempt_id = ?", attempt.ID).Count(&certCount).Error)
	assert.EqualValues(t, 0, certCount)
}

func TestSubmitAnswersWithinGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, func(e *model.Exam) { e.GracePeriodSeconds = 7200 })
	questions := seedQuestions(t, env.db, exam.ID, 1)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.Attempt{}).
		Where("id = ?", attempt.ID).
		Update("started_at", time.Now().Add(-time.Hour)).Error)

	result, err := env.scoring.SubmitAnswers(attempt.ID, 1, []SubmittedAnswer{
		{QuestionID: questions[0].ID, SelectedOptionID: correctOptionID(questions[0])},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, result.Status)
}

func TestSubmitAnswersGuards(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 1)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	_, err = env.scoring.SubmitAnswers(9999, 1, nil)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	_, err = env.scoring.SubmitAnswers(attempt.ID, 42, nil)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
