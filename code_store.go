package otcauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OneTimeCode is the gorm model for one issued code. A record is created
// PENDING and only ever moves to a terminal state: used, expired, or
// attempts-exhausted. Fresh requests insert a new row; old rows are never
// resurrected.
type OneTimeCode struct {
	ID          uint      `gorm:"primaryKey"`
	Contact     string    `gorm:"size:255;index:idx_codes_contact_purpose;not null"`
	Code        string    `gorm:"size:10;not null"`
	Purpose     Purpose   `gorm:"size:32;index:idx_codes_contact_purpose;not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	IsUsed      bool      `gorm:"index;not null;default:false"`
	Attempts    int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName keeps the table name stable regardless of gorm naming config.
func (OneTimeCode) TableName() string { return "one_time_codes" }

type codeStore struct {
	db *gorm.DB
}

func newCodeStore(db *gorm.DB) *codeStore {
	return &codeStore{db: db}
}

func migrateCodes(db *gorm.DB) error {
	if err := db.AutoMigrate(&OneTimeCode{}); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Replace invalidates any unused, unexpired code for (contact, purpose)
// and inserts the fresh record in the same transaction. The single
// transactional step is what upholds the at-most-one-valid-code invariant
// under concurrent requests for the same pair.
func (s *codeStore) Replace(ctx context.Context, record *OneTimeCode) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&OneTimeCode{}).
			Where("contact = ? AND purpose = ? AND is_used = ? AND expires_at > ?",
				record.Contact, record.Purpose, false, time.Now()).
			Update("is_used", true).Error
		if err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// FindValid returns the single unused, unexpired record for the pair,
// newest first in case stale rows survived a partial failure.
func (s *codeStore) FindValid(ctx context.Context, contact string, purpose Purpose) (*OneTimeCode, error) {
	var record OneTimeCode
	err := s.db.WithContext(ctx).
		Where("contact = ? AND purpose = ? AND is_used = ? AND expires_at > ?",
			contact, purpose, false, time.Now()).
		Order("created_at desc").Order("id desc").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &record, nil
}

// IncrementAttempts bumps the attempt counter atomically in SQL and
// returns the new value.
func (s *codeStore) IncrementAttempts(ctx context.Context, id uint) (int, error) {
	res := s.db.WithContext(ctx).Model(&OneTimeCode{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}

	var record OneTimeCode
	if err := s.db.WithContext(ctx).Select("attempts").First(&record, id).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record.Attempts, nil
}

// MarkUsed flips the record to its terminal used state. The conditional
// guard makes consumption single-use: zero rows affected means another
// caller consumed it first.
func (s *codeStore) MarkUsed(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&OneTimeCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired purges used or expired rows older than the retention
// window. Idempotent; acts only on rows past a deterministic timestamp.
func (s *codeStore) DeleteExpired(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-retention)
	res := s.db.WithContext(ctx).
		Where("(is_used = ? OR expires_at <= ?) AND created_at <= ?", true, now, cutoff).
		Delete(&OneTimeCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
