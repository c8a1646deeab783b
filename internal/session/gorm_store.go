package session

import (
	"context"
	"errors"
	"fmt"
	"procurement-service/internal/model"
	"time"

	"gorm.io/gorm"
)

// GormStore keeps sessions in the browser_sessions table
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store over an open database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates or updates the sessions table
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.Session{}); err != nil {
		return fmt.Errorf("failed to migrate sessions table: %w", err)
	}
	return nil
}

// Create inserts the session
func (s *GormStore) Create(ctx context.Context, sess *model.Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get loads a live session
func (s *GormStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, s.now()).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// Delete removes the session
func (s *GormStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry and returns how many went
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
