package service

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"time"

	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
)

// PresentationService builds the learner-facing question view for an open
// attempt. Ordering is a pure function of the attempt ID, so repeated reads
// of the same attempt always see the same permutation.
type PresentationService struct {
	ExamRepo    *repository.ExamRepository
	AttemptRepo *repository.AttemptRepository
}

func NewPresentationService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository) *PresentationService {
	return &PresentationService{
		ExamRepo:    examRepo,
		AttemptRepo: attemptRepo,
	}
}

type PresentedOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type PresentedQuestion struct {
	ID      uint               `json:"id"`
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Points  int                `json:"points"`
	Options []PresentedOption  `json:"options"`
}

type AttemptPresentation struct {
	AttemptID       uint                `json:"attemptId"`
	ExamID          uint                `json:"examId"`
	ExamTitle       string              `json:"examTitle"`
	AttemptNumber   int                 `json:"attemptNumber"`
	DurationMinutes int                 `json:"durationMinutes"`
	StartedAt       time.Time           `json:"startedAt"`
	Deadline        time.Time           `json:"deadline"`
	Questions       []PresentedQuestion `json:"questions"`
}

// GetPresentation returns the ordered, correctness-stripped question set for
// an in-progress attempt owned by userID.
func (s *PresentationService) GetPresentation(attemptID, userID uint) (*AttemptPresentation, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotActive
	}

	exam, err := s.ExamRepo.FindByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	questions, err := s.ExamRepo.QuestionsWithOptions(exam.ID)
	if err != nil {
		return nil, err
	}

	if exam.ShuffleQuestions {
		perm := permutation(len(questions), attemptSeed(attempt.ID, 0))
		shuffled := make([]model.Question, len(questions))
		for i, j := range perm {
			shuffled[i] = questions[j]
		}
		questions = shuffled
	}

	presented := make([]PresentedQuestion, len(questions))
	for i, q := range questions {
		options := q.Options
		if exam.ShuffleOptions {
			perm := permutation(len(options), attemptSeed(attempt.ID, q.ID))
			shuffled := make([]model.Option, len(options))
			for k, j := range perm {
				shuffled[k] = options[j]
			}
			options = shuffled
		}

		view := PresentedQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Points:  q.Points,
			Options: make([]PresentedOption, len(options)),
		}
		for k, o := range options {
			view.Options[k] = PresentedOption{ID: o.ID, Text: o.Text}
		}
		presented[i] = view
	}

	return &AttemptPresentation{
		AttemptID:       attempt.ID,
		ExamID:          exam.ID,
		ExamTitle:       exam.Title,
		AttemptNumber:   attempt.AttemptNumber,
		DurationMinutes: exam.DurationMinutes,
		StartedAt:       attempt.StartedAt,
		Deadline:        attempt.Deadline(exam),
		Questions:       presented,
	}, nil
}

// attemptSeed hashes (attemptID, questionID) into a PRNG seed. questionID 0
// seeds the question-order permutation; per-question option order gets its
// own seed so reordering one question never reshuffles another.
func attemptSeed(attemptID, questionID uint) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(attemptID))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(questionID))
	h.Write(buf[:])
	return int64(h.Sum64())
}

func permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(n)
}
