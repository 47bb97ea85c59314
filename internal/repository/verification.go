package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tush00nka/phonechat/internal/model"
)

type VerificationRepository interface {
	Create(ctx context.Context, code *model.VerificationCode) error
	// DeleteStale removes codes of phone that are used or expired at now.
	DeleteStale(ctx context.Context, phone string, now time.Time) (int64, error)
	// FindActive returns at most limit unused codes of phone expiring after now,
	// newest first. limit <= 0 returns all of them.
	FindActive(ctx context.Context, phone string, now time.Time, limit int) ([]model.VerificationCode, error)
	// MarkUsed flips used to true only if the code is still unused and unexpired.
	// It reports false when another caller got there first or the code expired.
	MarkUsed(ctx context.Context, id string, now time.Time) (bool, error)
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, code *model.VerificationCode) error {
	return translate(r.db.WithContext(ctx).Create(code).Error)
}

func (r *verificationRepository) DeleteStale(ctx context.Context, phone string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		Where("used = ? OR expires_at <= ?", true, now).
		Delete(&model.VerificationCode{})
	return result.RowsAffected, result.Error
}

func (r *verificationRepository) FindActive(ctx context.Context, phone string, now time.Time, limit int) ([]model.VerificationCode, error) {
	var codes []model.VerificationCode
	query := r.db.WithContext(ctx).
		Where("phone = ? AND used = ? AND expires_at > ?", phone, false, now).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *verificationRepository) MarkUsed(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.VerificationCode{}).
		Where("id = ? AND used = ? AND expires_at > ?", id, false, now).
		Update("used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
