package summary

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medvault/portal/internal/models"
	"github.com/medvault/portal/internal/modules/processing/ai"
	"github.com/medvault/portal/internal/modules/processing/extract"
	"github.com/medvault/portal/internal/pkg/blob"
	"github.com/medvault/portal/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeModel struct {
	mu      sync.Mutex
	calls   atomic.Int32
	err     error
	block   chan struct{}
	lastReq ai.Request
}

func (m *fakeModel) Generate(ctx context.Context, req ai.Request) (string, error) {
	n := m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.lastReq = req
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("summary #%d", n), nil
}

func (m *fakeModel) request() ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

type fakeDocs struct {
	mu   sync.Mutex
	docs []models.DocumentModel
	err  error
}

func (f *fakeDocs) ListDocuments(_ context.Context, _ string) ([]models.DocumentModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.DocumentModel, len(f.docs))
	copy(out, f.docs)
	return out, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	db      *gorm.DB
	store   *GormStore
	blobs   *blob.LocalStore
	model   *fakeModel
	docs    *fakeDocs
	clock   *fakeClock
	folder  *models.FolderModel
	metrics *Metrics
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	user := testutil.CreateUser(t, db, "alice")
	folder := testutil.CreateFolder(t, db, user.ID, "Cardiology", nil)

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		db:      db,
		store:   NewGormStore(db),
		blobs:   blobs,
		model:   &fakeModel{},
		docs:    &fakeDocs{},
		clock:   &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		folder:  folder,
		metrics: NewMetrics(nil),
	}
	f.svc = f.newService(nil)
	return f
}

func (f *fixture) newService(model ai.Model) *Service {
	if model == nil {
		model = f.model
	}
	gen := NewGenerator(f.store, f.blobs, extract.New(extract.Options{}, zap.NewNop()), model, 512, zap.NewNop())
	gen.now = f.clock.Now
	svc := NewService(f.docs, f.store, gen, Options{Cooldown: 30 * time.Minute}, nil, f.metrics, zap.NewNop())
	svc.now = f.clock.Now
	return svc
}

// addDoc stores content and lists it in the folder.
func (f *fixture) addDoc(t *testing.T, name string, content []byte) models.DocumentModel {
	t.Helper()
	sum := sha256.Sum256(content)
	key := fmt.Sprintf("%s/%s", f.folder.ID, name)
	require.NoError(t, f.blobs.Put(context.Background(), key, bytes.NewReader(content), int64(len(content)), ""))
	doc := testutil.CreateDocument(t, f.db, f.folder, name, key, hex.EncodeToString(sum[:]), int64(len(content)))

	f.docs.mu.Lock()
	f.docs.docs = append(f.docs.docs, *doc)
	f.docs.mu.Unlock()
	return *doc
}

// addMissingDoc lists a document whose bytes were never stored.
func (f *fixture) addMissingDoc(t *testing.T, name string) {
	t.Helper()
	doc := testutil.CreateDocument(t, f.db, f.folder, name, f.folder.ID+"/gone/"+name, "deadbeef", 42)
	f.docs.mu.Lock()
	f.docs.docs = append(f.docs.docs, *doc)
	f.docs.mu.Unlock()
}

func (f *fixture) removeDoc(name string) {
	f.docs.mu.Lock()
	defer f.docs.mu.Unlock()
	kept := f.docs.docs[:0]
	for _, d := range f.docs.docs {
		if d.Filename != name {
			kept = append(kept, d)
		}
	}
	f.docs.docs = kept
}

type failingUpsertStore struct {
	Store
}

func (failingUpsertStore) Upsert(context.Context, string, string, string, time.Time) error {
	return &PersistenceError{Op: "upsert", Err: errors.New("disk full")}
}
