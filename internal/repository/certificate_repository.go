package repository

import (
	"errors"

	"examhub_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}

func (r *CertificateRepository) FindByID(id uint) (*model.Certificate, error) {
	var cert model.Certificate
	if err := r.DB.First(&cert, id).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByAttemptID returns (nil, nil) when no certificate exists for the
// attempt, which is a normal outcome for failed attempts.
func (r *CertificateRepository) FindByAttemptID(attemptID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("attempt_id = ?", attemptID).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByCode(code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("verification_code = ?", code).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Certificate{}).Where("verification_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *CertificateRepository) ListByUser(userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.Where("user_id = ?", userID).Order("issued_date desc").Find(&certs).Error
	return certs, err
}
