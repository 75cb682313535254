package folder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/medvault/portal/internal/models"
	"github.com/medvault/portal/internal/pkg/blob"
	"github.com/medvault/portal/internal/pkg/pagination"
	"github.com/medvault/portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	blobs *blob.LocalStore
	svc   *Service
	user  *models.UserModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		db:    db,
		blobs: blobs,
		svc:   NewService(db, blobs, 1024, zap.NewNop()),
		user:  testutil.CreateUser(t, db, "alice"),
	}
}

func TestCreateAndListFolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.svc.CreateFolder(ctx, f.user.ID, "  Cardiology ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", root.Name)

	child, err := f.svc.CreateFolder(ctx, f.user.ID, "2025", &root.ID)
	require.NoError(t, err)

	roots, err := f.svc.ListFolders(ctx, f.user.ID, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)

	children, err := f.svc.ListFolders(ctx, f.user.ID, &root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	_, err = f.svc.CreateFolder(ctx, f.user.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestFoldersAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := testutil.CreateUser(t, f.db, "bob")

	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Private", nil)
	require.NoError(t, err)

	owns, err := f.svc.OwnsFolder(ctx, bob.ID, folder.ID)
	require.NoError(t, err)
	assert.False(t, owns)
	owns, err = f.svc.OwnsFolder(ctx, f.user.ID, folder.ID)
	require.NoError(t, err)
	assert.True(t, owns)

	_, err = f.svc.GetFolder(ctx, bob.ID, folder.ID)
	assert.ErrorIs(t, err, ErrFolderNotFound)
	_, err = f.svc.CreateFolder(ctx, bob.ID, "Sneaky", &folder.ID)
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"extension not allowed", UploadInput{Filename: "run.exe", Data: []byte("MZ")}, ErrUnsupportedType},
		{"no extension", UploadInput{Filename: "README", Data: []byte("hi")}, ErrUnsupportedType},
		{"too large", UploadInput{Filename: "big.txt", Data: make([]byte, 1025)}, ErrFileTooLarge},
		{"empty name", UploadInput{Filename: "/", Data: []byte("x")}, ErrInvalidName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, f.user.ID, folder.ID, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUploadStoresDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)

	doc, err := f.svc.Upload(ctx, f.user.ID, folder.ID, UploadInput{
		Filename:    `C:\scans\Blood Panel.TXT`,
		Description: "March panel",
		Data:        []byte("Hemoglobin 13.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blood Panel.TXT", doc.Filename)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, int64(15), doc.FileSize)
	sum := sha256.Sum256([]byte("Hemoglobin 13.5"))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.ContentHash)
	assert.Contains(t, doc.MimeType, "text/plain")

	got, data, err := f.svc.ReadDocument(ctx, f.user.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, []byte("Hemoglobin 13.5"), data)

	_, err = f.svc.Upload(ctx, f.user.ID, folder.ID, UploadInput{Filename: "copy.txt", Data: []byte("Hemoglobin 13.5")})
	assert.ErrorIs(t, err, ErrDuplicateContent)

	other, err := f.svc.CreateFolder(ctx, f.user.ID, "Other", nil)
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, f.user.ID, other.ID, UploadInput{Filename: "copy.txt", Data: []byte("Hemoglobin 13.5")})
	assert.NoError(t, err)
}

func TestDuplicateContentIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)

	testutil.CreateDocument(t, f.db, folder, "a.txt", "k/a.txt", "cafe", 4)
	dup := &models.DocumentModel{
		FolderID:    folder.ID,
		UserID:      f.user.ID,
		Filename:    "b.txt",
		StorageKey:  "k/b.txt",
		FileType:    "txt",
		FileSize:    4,
		ContentHash: "cafe",
	}
	err = f.db.Create(dup).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKeyError(err))
}

func TestListDocumentsKeepsUploadOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)

	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		_, err := f.svc.Upload(ctx, f.user.ID, folder.ID, UploadInput{Filename: name, Data: []byte("content of " + name)})
		require.NoError(t, err)
	}

	docs, err := f.svc.ListDocuments(ctx, folder.ID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c.txt", docs[0].Filename)
	assert.Equal(t, "a.txt", docs[1].Filename)
	assert.Equal(t, "b.txt", docs[2].Filename)

	page, pag, err := f.svc.PageDocuments(ctx, f.user.ID, folder.ID, pagination.Query{Page: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b.txt", page[0].Filename)
	assert.EqualValues(t, 3, pag.Total)
	assert.Equal(t, 2, pag.TotalPage)
	assert.False(t, pag.HasNextPage)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder, err := f.svc.CreateFolder(ctx, f.user.ID, "Labs", nil)
	require.NoError(t, err)
	doc, err := f.svc.Upload(ctx, f.user.ID, folder.ID, UploadInput{Filename: "a.txt", Data: []byte("alpha")})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteDocument(ctx, f.user.ID, doc.ID))
	_, err = f.svc.GetDocument(ctx, f.user.ID, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = f.blobs.Open(ctx, doc.StorageKey)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestDeleteFolderCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root, err := f.svc.CreateFolder(ctx, f.user.ID, "Root", nil)
	require.NoError(t, err)
	child, err := f.svc.CreateFolder(ctx, f.user.ID, "Child", &root.ID)
	require.NoError(t, err)
	grandchild, err := f.svc.CreateFolder(ctx, f.user.ID, "Grandchild", &child.ID)
	require.NoError(t, err)

	rootDoc, err := f.svc.Upload(ctx, f.user.ID, root.ID, UploadInput{Filename: "a.txt", Data: []byte("alpha")})
	require.NoError(t, err)
	deepDoc, err := f.svc.Upload(ctx, f.user.ID, grandchild.ID, UploadInput{Filename: "b.txt", Data: []byte("beta")})
	require.NoError(t, err)

	text := "cached"
	for _, id := range []string{root.ID, grandchild.ID} {
		require.NoError(t, f.db.Create(&models.FolderSummaryModel{FolderID: id, SummaryText: &text, Fingerprint: "fp"}).Error)
	}

	require.NoError(t, f.svc.DeleteFolder(ctx, f.user.ID, root.ID))

	var count int64
	require.NoError(t, f.db.Model(&models.FolderModel{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&models.DocumentModel{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&models.FolderSummaryModel{}).Count(&count).Error)
	assert.Zero(t, count)

	for _, key := range []string{rootDoc.StorageKey, deepDoc.StorageKey} {
		_, err := f.blobs.Open(ctx, key)
		assert.ErrorIs(t, err, blob.ErrNotFound)
	}

	assert.ErrorIs(t, f.svc.DeleteFolder(ctx, f.user.ID, root.ID), ErrFolderNotFound)
}
