package folder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/medvault/portal/internal/models"
	"github.com/medvault/portal/internal/pkg/blob"
	"github.com/medvault/portal/internal/pkg/pagination"
	"github.com/medvault/portal/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service manages folders and the documents inside them.
type Service struct {
	db       *gorm.DB
	blobs    blob.Store
	maxBytes int64
	log      *zap.Logger
}

func NewService(db *gorm.DB, blobs blob.Store, maxBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, blobs: blobs, maxBytes: maxBytes, log: log}
}

// MaxUploadBytes is the per-document size limit.
func (s *Service) MaxUploadBytes() int64 { return s.maxBytes }

// ListFolders returns the user's folders under parentID (root when nil).
func (s *Service) ListFolders(ctx context.Context, userID string, parentID *string) ([]models.FolderModel, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if parentID == nil {
		tx = tx.Where("parent_id IS NULL")
	} else {
		tx = tx.Where("parent_id = ?", *parentID)
	}
	var folders []models.FolderModel
	if err := tx.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

// GetFolder loads a folder owned by userID.
func (s *Service) GetFolder(ctx context.Context, userID, folderID string) (*models.FolderModel, error) {
	var f models.FolderModel
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", folderID, userID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// OwnsFolder reports whether folderID belongs to userID.
func (s *Service) OwnsFolder(ctx context.Context, userID, folderID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.FolderModel{}).
		Where("id = ? AND user_id = ?", folderID, userID).
		Count(&count).Error
	return count > 0, err
}

// CreateFolder adds a folder under parentID, which must belong to the same user.
func (s *Service) CreateFolder(ctx context.Context, userID, name string, parentID *string) (*models.FolderModel, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		if _, err := s.GetFolder(ctx, userID, *parentID); err != nil {
			return nil, err
		}
	}
	f := &models.FolderModel{Name: name, UserID: userID, ParentID: parentID}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFolder removes a folder with its subfolders, documents and summaries,
// then drops the stored bytes.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if _, err := s.GetFolder(ctx, userID, folderID); err != nil {
		return err
	}

	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := subtree(tx, folderID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.DocumentModel{}).Where("folder_id IN ?", ids).Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("folder_id IN ?", ids).Delete(&models.FolderSummaryModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("folder_id IN ?", ids).Delete(&models.DocumentModel{}).Error; err != nil {
			return err
		}
		// Deepest first so parent references never dangle.
		for i := len(ids) - 1; i >= 0; i-- {
			if err := tx.Delete(&models.FolderModel{}, "id = ?", ids[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn("document bytes not removed", zap.String("storage_key", key), zap.Error(err))
		}
	}
	return nil
}

// subtree returns folderID and all of its descendants in breadth-first order.
func subtree(tx *gorm.DB, folderID string) ([]string, error) {
	ids := []string{folderID}
	frontier := []string{folderID}
	for len(frontier) > 0 {
		var next []string
		if err := tx.Model(&models.FolderModel{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
			return nil, err
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

// ListDocuments returns every document of a folder in upload order. It is the
// listing the summary fingerprint and payload are built from.
func (s *Service) ListDocuments(ctx context.Context, folderID string) ([]models.DocumentModel, error) {
	var docs []models.DocumentModel
	err := s.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("uploaded_at ASC, id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// PageDocuments lists one page of a user's folder.
func (s *Service) PageDocuments(ctx context.Context, userID, folderID string, q pagination.Query) ([]models.DocumentModel, response.Pagination, error) {
	if _, err := s.GetFolder(ctx, userID, folderID); err != nil {
		return nil, response.Pagination{}, err
	}
	tx := s.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("folder_id = ?", folderID).
		Order("uploaded_at ASC, id ASC")

	docs := []models.DocumentModel{}
	pag, err := pagination.Paginate(tx, q, &docs)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return docs, pag, nil
}

// Upload validates and stores a document. Identical content already present
// in the folder is rejected.
func (s *Service) Upload(ctx context.Context, userID, folderID string, in UploadInput) (*models.DocumentModel, error) {
	folder, err := s.GetFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(in.Filename)
	if err != nil {
		return nil, err
	}
	ext, err := validateUpload(name, int64(len(in.Data)), s.maxBytes)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(in.Data)
	hash := hex.EncodeToString(sum[:])

	var dup int64
	if err := s.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("folder_id = ? AND content_hash = ?", folder.ID, hash).
		Count(&dup).Error; err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, ErrDuplicateContent
	}

	contentType := detectContentType(in.Data, in.ContentType)
	key := buildStorageKey(userID, folder.ID, ext)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)), contentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &models.DocumentModel{
		FolderID:    folder.ID,
		UserID:      userID,
		Filename:    name,
		StorageKey:  key,
		FileType:    ext,
		MimeType:    contentType,
		FileSize:    int64(len(in.Data)),
		ContentHash: hash,
		Description: in.Description,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Warn("orphaned document bytes", zap.String("storage_key", key), zap.Error(delErr))
		}
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateContent
		}
		return nil, err
	}

	s.log.Info("document uploaded",
		zap.String("folder_id", folder.ID),
		zap.String("document_id", doc.ID),
		zap.String("file_type", ext),
		zap.Int64("size", doc.FileSize),
	)
	return doc, nil
}

// GetDocument loads a document owned by userID.
func (s *Service) GetDocument(ctx context.Context, userID, documentID string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", documentID, userID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadDocument returns the stored bytes of a document.
func (s *Service) ReadDocument(ctx context.Context, userID, documentID string) (*models.DocumentModel, []byte, error) {
	doc, err := s.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, nil, err
	}
	data, err := blob.ReadAll(ctx, s.blobs, doc.StorageKey, s.maxBytes)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// MoveDocument re-parents a document into another folder of the same user.
// Both folders' contents change, so both summaries go stale. The storage key
// is left untouched.
func (s *Service) MoveDocument(ctx context.Context, userID, documentID, targetFolderID string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	var sourceID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", documentID, userID).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		var target models.FolderModel
		if err := tx.Select("id").Where("id = ? AND user_id = ?", targetFolderID, userID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFolderNotFound
			}
			return err
		}
		if doc.FolderID == target.ID {
			return nil
		}

		var dup int64
		if err := tx.Model(&models.DocumentModel{}).
			Where("folder_id = ? AND content_hash = ?", target.ID, doc.ContentHash).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return ErrDuplicateContent
		}
		if err := tx.Model(&models.DocumentModel{}).Where("id = ?", doc.ID).Update("folder_id", target.ID).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateContent
			}
			return err
		}
		sourceID, doc.FolderID = doc.FolderID, target.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sourceID != "" {
		s.log.Info("document moved",
			zap.String("document_id", doc.ID),
			zap.String("from_folder_id", sourceID),
			zap.String("to_folder_id", doc.FolderID),
		)
	}
	return &doc, nil
}

// DeleteDocument removes the row first, then its bytes.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	doc, err := s.GetDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.DocumentModel{}, "id = ?", doc.ID).Error; err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		s.log.Warn("document bytes not removed", zap.String("storage_key", doc.StorageKey), zap.Error(err))
	}
	return nil
}
