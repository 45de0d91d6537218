package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"examhub_backend/internal/config"
	"examhub_backend/internal/model"
	"examhub_backend/internal/repository"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutcomeService derives pass/fail from a finalized attempt and issues
// certificates for passing ones. The pass/fail record is authoritative the
// moment the attempt row commits; certificate delivery is best-effort with
// queued retries.
type OutcomeService struct {
	AttemptRepo *repository.AttemptRepository
	ExamRepo    *repository.ExamRepository
	CertRepo    *repository.CertificateRepository
	Issuer      CertificateIssuer
	Queue       *IssuanceQueue
	IssuerCfg   config.IssuerConfig
	DB          *gorm.DB
}

func NewOutcomeService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	certRepo *repository.CertificateRepository,
	issuer CertificateIssuer,
	queue *IssuanceQueue,
	issuerCfg config.IssuerConfig,
	db *gorm.DB,
) *OutcomeService {
	return &OutcomeService{
		AttemptRepo: attemptRepo,
		ExamRepo:    examRepo,
		CertRepo:    certRepo,
		Issuer:      issuer,
		Queue:       queue,
		IssuerCfg:   issuerCfg,
		DB:          db,
	}
}

type Outcome struct {
	Passed      bool               `json:"passed"`
	Percentage  int                `json:"percentage"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
}

// Resolve computes the outcome for a completed attempt. Only completed
// attempts can pass; expired and abandoned ones resolve as failed. Resolving
// the same attempt twice returns the already-issued certificate.
func (s *OutcomeService) Resolve(attempt *model.Attempt, exam *model.Exam) (*Outcome, error) {
	outcome := &Outcome{Percentage: attempt.Percentage}
	if attempt.Status != model.AttemptCompleted {
		return outcome, nil
	}
	outcome.Passed = attempt.Percentage >= exam.PassingScore
	if !outcome.Passed {
		return outcome, nil
	}

	cert, err := s.CertRepo.FindByAttemptID(attempt.ID)
	if err != nil {
		s.scheduleReissue(attempt.ID)
		return nil, err
	}
	if cert == nil {
		cert, err = s.issueCertificate(attempt, exam)
		if err != nil {
			s.scheduleReissue(attempt.ID)
			return nil, err
		}
		s.deliver(cert)
	}
	outcome.Certificate = cert
	return outcome, nil
}

// scheduleReissue queues recovery for a pass whose certificate row could not
// be written. The attempt is already finalized and cannot be resubmitted, so
// the retry worker is the only path left to the certificate.
func (s *OutcomeService) scheduleReissue(attemptID uint) {
	monitoring.IssuanceRetries.Inc()
	job := model.IssuanceJob{
		AttemptID: attemptID,
		Attempts:  1,
		NextRunAt: time.Now().Add(s.IssuerCfg.InitialBackoff),
	}
	if err := s.Queue.Enqueue(context.Background(), job); err != nil {
		logger.Log.Error("failed to enqueue certificate reissue",
			zap.Uint("attemptId", attemptID), zap.Error(err))
	}
}

func (s *OutcomeService) issueCertificate(attempt *model.Attempt, exam *model.Exam) (*model.Certificate, error) {
	code, err := s.uniqueVerificationCode()
	if err != nil {
		return nil, err
	}

	issued := time.Now()
	cert := &model.Certificate{
		UserID:           attempt.UserID,
		ExamID:           exam.ID,
		AttemptID:        attempt.ID,
		Score:            attempt.Score,
		Percentage:       attempt.Percentage,
		CEUCredits:       ceuCredits(exam, attempt.Percentage),
		IssuedDate:       issued,
		ExpiryDate:       issued.AddDate(0, exam.ValidityMonths, 0),
		VerificationCode: code,
		IsValid:          true,
	}

	if err := s.CertRepo.Create(cert); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent resolver won; use its certificate.
			existing, ferr := s.CertRepo.FindByAttemptID(attempt.ID)
			if ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	monitoring.CertificatesIssued.Inc()
	logger.Log.Info("certificate issued",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("certificateId", cert.ID),
		zap.Float64("ceuCredits", cert.CEUCredits),
	)
	return cert, nil
}

// deliver notifies the issuer collaborator. A failure queues a retry job and
// never propagates: the certificate row is already the source of truth.
func (s *OutcomeService) deliver(cert *model.Certificate) {
	ctx, cancel := context.WithTimeout(context.Background(), s.IssuerCfg.Timeout)
	defer cancel()

	if err := s.Issuer.Issue(ctx, cert); err == nil {
		return
	} else {
		logger.Log.Warn("certificate delivery failed, queueing retry",
			zap.Uint("certificateId", cert.ID), zap.Error(err))
	}

	monitoring.IssuanceRetries.Inc()
	job := model.IssuanceJob{
		CertificateID: cert.ID,
		AttemptID:     cert.AttemptID,
		Attempts:      1,
		NextRunAt:     time.Now().Add(s.IssuerCfg.InitialBackoff),
	}
	if err := s.Queue.Enqueue(context.Background(), job); err != nil {
		logger.Log.Error("failed to enqueue issuance retry",
			zap.Uint("certificateId", cert.ID), zap.Error(err))
	}
}

// ProcessIssuanceQueue drains due retry jobs, doubling the backoff on each
// failure until MaxRetries is exhausted. Called from the background worker.
func (s *OutcomeService) ProcessIssuanceQueue(ctx context.Context) error {
	jobs, err := s.Queue.PopDue(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := s.runIssuanceJob(ctx, &job); err == nil {
			continue
		} else {
			logger.Log.Warn("issuance retry failed",
				zap.Uint("attemptId", job.AttemptID), zap.Error(err))
		}

		job.Attempts++
		if job.Attempts > s.IssuerCfg.MaxRetries {
			logger.Log.Error("certificate issuance abandoned after retries",
				zap.Uint("attemptId", job.AttemptID), zap.Int("attempts", job.Attempts))
			continue
		}

		backoff := s.IssuerCfg.InitialBackoff << uint(job.Attempts-1)
		job.NextRunAt = time.Now().Add(backoff)
		monitoring.IssuanceRetries.Inc()
		if err := s.Queue.Enqueue(ctx, job); err != nil {
			logger.Log.Error("issuance retry: requeue failed",
				zap.Uint("attemptId", job.AttemptID), zap.Error(err))
		}
	}
	return nil
}

// runIssuanceJob finishes whatever the job still owes: the certificate row
// itself when the store failed at resolution time, then delivery to the
// issuer. A job carrying no certificate ID is the store-recovery case.
func (s *OutcomeService) runIssuanceJob(ctx context.Context, job *model.IssuanceJob) error {
	var cert *model.Certificate
	var err error
	if job.CertificateID != 0 {
		cert, err = s.CertRepo.FindByID(job.CertificateID)
	} else {
		cert, err = s.reissueCertificate(job.AttemptID)
	}
	if err != nil {
		return err
	}
	job.CertificateID = cert.ID

	issueCtx, cancel := context.WithTimeout(ctx, s.IssuerCfg.Timeout)
	defer cancel()
	return s.Issuer.Issue(issueCtx, cert)
}

// reissueCertificate recovers a passed attempt whose certificate row was
// never written.
func (s *OutcomeService) reissueCertificate(attemptID uint) (*model.Certificate, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptCompleted || attempt.Percentage < exam.PassingScore {
		return nil, errors.New("attempt does not qualify for a certificate")
	}

	cert, err := s.CertRepo.FindByAttemptID(attempt.ID)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		return cert, nil
	}
	return s.issueCertificate(attempt, exam)
}

type OutcomeView struct {
	AttemptID     uint                `json:"attemptId"`
	Status        model.AttemptStatus `json:"status"`
	Passed        bool                `json:"passed"`
	Percentage    int                 `json:"percentage"`
	Score         int                 `json:"score"`
	CertificateID *uint               `json:"certificateId,omitempty"`
}

// GetOutcome reports the stored outcome for a finalized attempt.
func (s *OutcomeService) GetOutcome(attemptID, userID uint) (*OutcomeView, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if !attempt.Terminal() {
		return nil, util.ErrAttemptNotFinalized
	}

	view := &OutcomeView{
		AttemptID:  attempt.ID,
		Status:     attempt.Status,
		Percentage: attempt.Percentage,
		Score:      attempt.Score,
	}

	if attempt.Status == model.AttemptCompleted {
		exam, err := s.ExamRepo.FindByID(attempt.ExamID)
		if err != nil {
			return nil, err
		}
		view.Passed = attempt.Percentage >= exam.PassingScore
		if view.Passed {
			cert, err := s.CertRepo.FindByAttemptID(attempt.ID)
			if err != nil {
				return nil, err
			}
			if cert != nil {
				id := cert.ID
				view.CertificateID = &id
			}
		}
	}
	return view, nil
}

type CertificateVerification struct {
	Valid       bool               `json:"valid"`
	Expired     bool               `json:"expired,omitempty"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
}

// VerifyCertificate lets a third party validate an issued certificate by its
// public code. Unknown codes verify as invalid rather than erroring.
func (s *OutcomeService) VerifyCertificate(code string) (*CertificateVerification, error) {
	cert, err := s.CertRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return &CertificateVerification{Valid: false}, nil
	}

	expired := cert.ExpiredAt(time.Now())
	return &CertificateVerification{
		Valid:       cert.IsValid && !expired,
		Expired:     expired,
		Certificate: cert,
	}, nil
}

func (s *OutcomeService) ListUserCertificates(userID uint) ([]model.Certificate, error) {
	return s.CertRepo.ListByUser(userID)
}

// ceuCredits applies the exam's configured CEU policy. The formula is exam
// configuration, never inferred from a single hard-coded rule.
func ceuCredits(exam *model.Exam, percentage int) float64 {
	switch exam.CEUPolicyName {
	case model.CEUFixed:
		return exam.CEUFixedCredits
	case model.CEUPercentageTenth:
		return math.Floor(float64(percentage) / 10)
	default:
		return math.Floor(float64(percentage) / 10)
	}
}

// uniqueVerificationCode generates a public code and rejects collisions
// against the store before use. The unique index backstops any race.
func (s *OutcomeService) uniqueVerificationCode() (string, error) {
	for i := 0; i < 5; i++ {
		raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
		code := fmt.Sprintf("EXH-%s-%s", raw[:8], raw[8:16])
		exists, err := s.CertRepo.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique verification code")
}
