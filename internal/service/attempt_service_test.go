package service

import (
	"testing"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAttemptCreatesFirstAttempt(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 5)

	attempt, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{IPAddress: "10.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)

	assert.Equal(t, 1, attempt.AttemptNumber)
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
	assert.Equal(t, 5, attempt.TotalQuestions)
	assert.False(t, attempt.StartedAt.IsZero())
	require.NotNil(t, attempt.ActiveKey)
	assert.Equal(t, model.ActiveKeyFor(exam.ID, 1), *attempt.ActiveKey)
}

func TestStartAttemptExamNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.attempts.StartAttempt(999, 1, RequestMeta{})
	assert.ErrorIs(t, err, util.ErrExamNotFound)
}

func TestStartAttemptUnavailableExams(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name string
		mut  func(*model.Exam)
	}{
		{"unpublished", func(e *model.Exam) { e.IsPublished = false }},
		{"inactive", func(e *model.Exam) { e.IsActive = false }},
		{"not yet open", func(e *model.Exam) { e.StartDate = &future }},
		{"window closed", func(e *model.Exam) { e.EndDate = &past }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := seedExam(t, env.db, tt.mut)
			_, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
			assert.ErrorIs(t, err, util.ErrExamUnavailable)
		})
	}
}

func TestStartAttemptRejectsSecondActive(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 3)

	first, err := env.attempts.StartAttempt(exam.ID, 7, RequestMeta{})
	require.NoError(t, err)

	_, err = env.attempts.StartAttempt(exam.ID, 7, RequestMeta{})
	require.ErrorIs(t, err, util.ErrAttemptAlreadyActive)

	var active *util.ActiveAttemptError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, first.ID, active.AttemptID)

	// No duplicate row slipped in.
	var count int64
	require.NoError(t, env.db.Model(&model.Attempt{}).
		Where("exam_id = ? AND user_id = ?", exam.ID, 7).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStartAttemptDuplicateKeyResolvesToWinner(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 3)

	// A competing request can commit between the eligibility scan and the
	// insert. Model that window with a row the scan does not treat as
	// blocking but whose key already occupies the unique index, so the
	// insert itself is what collides.
	key := model.ActiveKeyFor(exam.ID, 5)
	winner := &model.Attempt{
		ExamID:        exam.ID,
		UserID:        5,
		AttemptNumber: 1,
		Status:        model.AttemptAbandoned,
		StartedAt:     time.Now(),
		ActiveKey:     &key,
	}
	require.NoError(t, env.db.Create(winner).Error)

	_, err := env.attempts.StartAttempt(exam.ID, 5, RequestMeta{})
	require.ErrorIs(t, err, util.ErrAttemptAlreadyActive)

	// The loser learns which attempt holds the slot.
	var active *util.ActiveAttemptError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, winner.ID, active.AttemptID)

	// The losing insert rolled back with the rest of its transaction.
	var count int64
	require.NoError(t, env.db.Model(&model.Attempt{}).
		Where("exam_id = ? AND user_id = ?", exam.ID, 5).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStartAttemptLimitCountsTerminalAttempts(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, func(e *model.Exam) { e.MaxAttempts = 2 })
	seedQuestions(t, env.db, exam.ID, 3)

	a1, err := env.attempts.StartAttempt(exam.ID, 3, RequestMeta{})
	require.NoError(t, err)
	_, err = env.attempts.AbandonAttempt(a1.ID, 3)
	require.NoError(t, err)

	a2, err := env.attempts.StartAttempt(exam.ID, 3, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, a2.AttemptNumber)
	_, err = env.attempts.AbandonAttempt(a2.ID, 3)
	require.NoError(t, err)

	// Abandoned attempts still consume the quota.
	_, err = env.attempts.StartAttempt(exam.ID, 3, RequestMeta{})
	assert.ErrorIs(t, err, util.ErrAttemptLimitExceeded)
}

func TestStartAttemptDifferentUsersIndependent(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, func(e *model.Exam) { e.MaxAttempts = 1 })
	seedQuestions(t, env.db, exam.ID, 3)

	_, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)

	// Another user's attempts are not affected by user 1's quota or lock.
	attempt, err := env.attempts.StartAttempt(exam.ID, 2, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.AttemptNumber)
}

func TestAbandonAttempt(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 3)

	attempt, err := env.attempts.StartAttempt(exam.ID, 5, RequestMeta{})
	require.NoError(t, err)

	abandoned, err := env.attempts.AbandonAttempt(attempt.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptAbandoned, abandoned.Status)
	require.NotNil(t, abandoned.CompletedAt)
	assert.Nil(t, abandoned.ActiveKey)

	// The slot is free again; the next attempt number still increases.
	next, err := env.attempts.StartAttempt(exam.ID, 5, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, next.AttemptNumber)
}

func TestAbandonAttemptGuards(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 3)

	attempt, err := env.attempts.StartAttempt(exam.ID, 5, RequestMeta{})
	require.NoError(t, err)

	_, err = env.attempts.AbandonAttempt(attempt.ID, 99)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = env.attempts.AbandonAttempt(attempt.ID, 5)
	require.NoError(t, err)

	// Terminal attempts are immutable.
	_, err = env.attempts.AbandonAttempt(attempt.ID, 5)
	assert.ErrorIs(t, err, util.ErrAttemptAlreadyFinalized)

	_, err = env.attempts.AbandonAttempt(12345, 5)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestExpireOverdue(t *testing.T) {
	env := newTestEnv(t)
	exam := seedExam(t, env.db, nil)
	seedQuestions(t, env.db, exam.ID, 3)

	overdue, err := env.attempts.StartAttempt(exam.ID, 1, RequestMeta{})
	require.NoError(t, err)
	// Push the start far past the 30-minute window.
	require.NoError(t, env.db.Model(&model.Attempt{}).
		Where("id = ?", overdue.ID).
		Update("started_at", time.Now().Add(-2*time.Hour)).Error)

	fresh, err := env.attempts.StartAttempt(exam.ID, 2, RequestMeta{})
	require.NoError(t, err)

	n, err := env.attempts.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var reloaded model.Attempt
	require.NoError(t, env.db.First(&reloaded, overdue.ID).Error)
	assert.Equal(t, model.AttemptExpired, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	assert.Nil(t, reloaded.ActiveKey)

	// Reset so the previous row's primary key is not added as a condition.
	reloaded = model.Attempt{}
	require.NoError(t, env.db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, model.AttemptInProgress, reloaded.Status)
}
