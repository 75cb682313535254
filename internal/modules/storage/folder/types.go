package folder

import "errors"

var (
	ErrFolderNotFound   = errors.New("folder not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicateContent = errors.New("a document with the same content already exists in this folder")
	ErrFileTooLarge     = errors.New("file exceeds the upload limit")
	ErrUnsupportedType  = errors.New("file type is not allowed")
	ErrInvalidName      = errors.New("invalid name")
)

// createFolderDTO is the request body for POST /folders.
type createFolderDTO struct {
	Name     string  `json:"name"      binding:"required"`
	ParentID *string `json:"parent_id"`
}

// moveDocumentDTO is the request body for PATCH /documents/:id.
type moveDocumentDTO struct {
	FolderID string `json:"folder_id" binding:"required"`
}

// UploadInput is one document to store in a folder.
type UploadInput struct {
	Filename    string
	Description string
	ContentType string
	Data        []byte
}
