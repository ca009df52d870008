package session

import "time"

// Session is the gorm model for one device login. Raw tokens are never
// stored; rows are located by the SHA-256 digest of the presented token.
type Session struct {
	ID               uint       `gorm:"primaryKey"`
	UserID           string     `gorm:"size:64;index;not null"`
	SessionID        string     `gorm:"size:64;uniqueIndex;not null"`
	Role             string     `gorm:"size:32"`
	AccessTokenHash  string     `gorm:"size:64;uniqueIndex;not null"`
	RefreshTokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	UserAgent        string     `gorm:"size:512"`
	DeviceClass      string     `gorm:"size:32"`
	IP               string     `gorm:"size:64"`
	ExpiresAt        time.Time  `gorm:"index;not null"`
	IsActive         bool       `gorm:"index;not null;default:true"`
	LastUsedAt       *time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName keeps the table name stable regardless of gorm naming config.
func (Session) TableName() string { return "auth_sessions" }

// Device is the metadata captured on session creation.
type Device struct {
	UserAgent   string
	DeviceClass string
	IP          string
}

// Expired reports whether the row is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
