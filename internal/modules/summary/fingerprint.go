package summary

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/medvault/portal/internal/models"
)

// DocumentKey is the part of a document that identifies its content.
type DocumentKey struct {
	Filename    string
	ContentHash string
	FileSize    int64
}

func keysOf(docs []models.DocumentModel) []DocumentKey {
	keys := make([]DocumentKey, len(docs))
	for i, d := range docs {
		keys[i] = DocumentKey{Filename: d.Filename, ContentHash: d.ContentHash, FileSize: d.FileSize}
	}
	return keys
}

// Fingerprint digests a document set. Order of keys does not matter; each field
// is length-prefixed so no two distinct sets serialize alike.
func Fingerprint(keys []DocumentKey) string {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b DocumentKey) int {
		return cmp.Or(
			cmp.Compare(a.Filename, b.Filename),
			cmp.Compare(a.ContentHash, b.ContentHash),
			cmp.Compare(a.FileSize, b.FileSize),
		)
	})

	h := sha256.New()
	for _, k := range sorted {
		fmt.Fprintf(h, "%d:%s|%d:%s|%d\n", len(k.Filename), k.Filename, len(k.ContentHash), k.ContentHash, k.FileSize)
	}
	return hex.EncodeToString(h.Sum(nil))
}
