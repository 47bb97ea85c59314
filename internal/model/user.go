package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Phone     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"` // 79991234567
	Name      *string   `gorm:"type:varchar(50)" json:"name"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// DisplayName returns the name, falling back to the phone number.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Phone
}

// VerificationCode is a single-use login code. Code holds a bcrypt hash, never the digits.
type VerificationCode struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Phone     string    `gorm:"type:varchar(32);index;not null" json:"phone"`
	Code      string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *VerificationCode) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Usable reports whether the code can still be redeemed at now.
func (v *VerificationCode) Usable(now time.Time) bool {
	return !v.Used && v.ExpiresAt.After(now)
}
