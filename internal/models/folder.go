package models

import "time"

// FolderModel is a node in a user's folder tree.
type FolderModel struct {
	Base
	Name      string              `json:"name"      gorm:"size:255;not null"`
	ParentID  *string             `json:"parent_id" gorm:"type:char(36);index"`
	UserID    string              `json:"user_id"   gorm:"type:char(36);index;not null"`
	Children  []FolderModel       `json:"-"         gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Documents []DocumentModel     `json:"-"         gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
	Summary   *FolderSummaryModel `json:"-"         gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
}

func (FolderModel) TableName() string { return "folders" }

// DocumentModel is an uploaded file. Its bytes live in blob storage under StorageKey.
// A folder holds at most one document per content hash.
type DocumentModel struct {
	Base
	FolderID    string    `json:"folder_id"    gorm:"type:char(36);index;uniqueIndex:idx_documents_folder_content;not null"`
	UserID      string    `json:"user_id"      gorm:"type:char(36);index;not null"`
	Filename    string    `json:"filename"     gorm:"size:255;not null"`
	StorageKey  string    `json:"-"            gorm:"size:512;not null"`
	FileType    string    `json:"file_type"    gorm:"size:16;not null"`
	MimeType    string    `json:"mime_type"    gorm:"size:128"`
	FileSize    int64     `json:"file_size"    gorm:"not null"`
	ContentHash string    `json:"content_hash" gorm:"size:64;uniqueIndex:idx_documents_folder_content;not null"`
	Description string    `json:"description"  gorm:"type:text"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (DocumentModel) TableName() string { return "documents" }

// FolderSummaryModel caches the AI summary of one folder. FolderID is unique so
// regeneration updates the row in place.
type FolderSummaryModel struct {
	Base
	FolderID    string     `json:"folder_id"    gorm:"type:char(36);uniqueIndex;not null"`
	SummaryText *string    `json:"summary_text" gorm:"type:text"`
	Fingerprint string     `json:"fingerprint"  gorm:"size:128"`
	LastUpdated *time.Time `json:"last_updated"`
}

func (FolderSummaryModel) TableName() string { return "folder_summaries" }
