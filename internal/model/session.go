package model

import "time"

// Session ties a browser cookie to the bearer token used against the inventory API
type Session struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccessToken string    `json:"-" gorm:"type:text;not null"`
	UserID      uint      `json:"user_id" gorm:"index"`
	Email       string    `json:"email" gorm:"type:varchar(255)"`
	ExpiresAt   time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "browser_sessions"
}

// Expired reports whether the session is no longer usable at t
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
