package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medvault/portal/internal/config"
	"github.com/medvault/portal/internal/database"
	"github.com/medvault/portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB creates a private in-memory SQLite database with the portal schema.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(config.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with an unusable password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.UserModel {
	t.Helper()
	u := &models.UserModel{Username: username, Name: username, Password: "!"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateFolder inserts a folder owned by userID.
func CreateFolder(t *testing.T, db *gorm.DB, userID, name string, parentID *string) *models.FolderModel {
	t.Helper()
	f := &models.FolderModel{Name: name, UserID: userID, ParentID: parentID}
	if err := db.Create(f).Error; err != nil {
		t.Fatalf("create folder: %v", err)
	}
	return f
}

// CreateDocument inserts document metadata; the bytes are expected under storageKey.
func CreateDocument(t *testing.T, db *gorm.DB, folder *models.FolderModel, filename, storageKey, contentHash string, size int64) *models.DocumentModel {
	t.Helper()
	d := &models.DocumentModel{
		FolderID:    folder.ID,
		UserID:      folder.UserID,
		Filename:    filename,
		StorageKey:  storageKey,
		FileType:    fileType(filename),
		FileSize:    size,
		ContentHash: contentHash,
		UploadedAt:  time.Now(),
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create document: %v", err)
	}
	return d
}

func fileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
