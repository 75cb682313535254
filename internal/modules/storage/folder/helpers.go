package folder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const maxNameLength = 255

// allowedExtensions is the upload allow-list.
var allowedExtensions = map[string]struct{}{
	"pdf": {}, "jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"txt": {}, "md": {}, "csv": {}, "json": {}, "xml": {}, "html": {},
	"doc": {}, "docx": {}, "xls": {}, "xlsx": {},
}

// fileExtension returns the lower-case extension without the dot.
func fileExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(filename))), ".")
}

// validateUpload checks the extension and size of an incoming document.
func validateUpload(filename string, size, maxBytes int64) (string, error) {
	ext := fileExtension(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: missing extension", ErrUnsupportedType)
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}
	if maxBytes > 0 && size > maxBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, maxBytes)
	}
	return ext, nil
}

// cleanName trims a display name and strips any client-side directory part.
func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidName
	}
	if strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return name, nil
}

// buildStorageKey returns a collision-free key that keeps the original extension.
func buildStorageKey(userID, folderID, ext string) string {
	return userID + "/" + folderID + "/" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
}

// detectContentType sniffs the payload, falling back to the client header.
func detectContentType(payload []byte, fallback string) string {
	if len(payload) > 0 {
		if mt := mimetype.Detect(payload); mt != nil && !mt.Is("application/octet-stream") {
			return mt.String()
		}
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return "application/octet-stream"
}

// isDuplicateKeyError reports a unique index violation. A concurrent upload of
// the same bytes can pass the pre-insert check and only fail here.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique constraint")
}
