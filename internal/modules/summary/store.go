package summary

import (
	"context"
	"errors"
	"time"

	"github.com/medvault/portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists one summary record per folder.
type Store interface {
	Get(ctx context.Context, folderID string) (*Record, error)
	Upsert(ctx context.Context, folderID, text, fingerprint string, at time.Time) error
	Delete(ctx context.Context, folderID string) error
}

// GormStore is the relational Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns nil, nil when the folder has no record.
func (s *GormStore) Get(ctx context.Context, folderID string) (*Record, error) {
	var row models.FolderSummaryModel
	if err := s.db.WithContext(ctx).Where("folder_id = ?", folderID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return recordFromModel(&row), nil
}

// Upsert writes text and fingerprint together in one statement.
func (s *GormStore) Upsert(ctx context.Context, folderID, text, fingerprint string, at time.Time) error {
	row := models.FolderSummaryModel{
		FolderID:    folderID,
		SummaryText: &text,
		Fingerprint: fingerprint,
		LastUpdated: &at,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "folder_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary_text", "fingerprint", "last_updated", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return &PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, folderID string) error {
	if err := s.db.WithContext(ctx).Where("folder_id = ?", folderID).Delete(&models.FolderSummaryModel{}).Error; err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	return nil
}
