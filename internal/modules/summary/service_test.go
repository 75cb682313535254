package summary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medvault/portal/internal/modules/processing/ai"
	"github.com/medvault/portal/internal/pkg/redis"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetOrGenerateServesCacheWithinCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin 13.5 g/dL"))

	first, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #1", first.Text)
	assert.False(t, first.Cached)
	require.NotNil(t, first.LastUpdated)

	f.clock.Advance(10 * time.Minute)
	second, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #1", second.Text)
	assert.True(t, second.Cached)
	assert.True(t, first.LastUpdated.Equal(*second.LastUpdated))
	assert.EqualValues(t, 1, f.model.calls.Load())
}

func TestGetOrGenerateRegeneratesAfterCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin 13.5 g/dL"))

	_, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #2", res.Text)
	assert.False(t, res.Cached)
	assert.EqualValues(t, 2, f.model.calls.Load())
}

func TestGetOrGenerateRegeneratesWhenDocumentsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a.txt", []byte("alpha"))
	f.addDoc(t, "b.txt", []byte("beta"))

	_, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)

	f.addDoc(t, "c.txt", []byte("gamma"))
	assert.Equal(t, Decision{true, ReasonChanged}, f.svc.NeedsRegeneration(ctx, f.folder.ID, false))
	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #2", res.Text)

	f.removeDoc("a.txt")
	res, err = f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #3", res.Text)
	assert.Equal(t, Decision{false, ReasonFresh}, f.svc.NeedsRegeneration(ctx, f.folder.ID, false))
}

func TestGenerateSummaryBypassesCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin 13.5 g/dL"))

	_, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)

	text, err := f.svc.GenerateSummary(ctx, f.folder.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary #2", text)
	assert.EqualValues(t, 2, f.model.calls.Load())
}

func TestEmptyFolderSkipsModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, EmptyFolderText, res.Text)
	assert.Nil(t, res.LastUpdated)
	assert.Zero(t, f.model.calls.Load())

	rec, err := f.store.Get(ctx, f.folder.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPartialExtractionFailureStillSummarizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addMissingDoc(t, "lost-scan.pdf")
	f.addDoc(t, "notes.txt", []byte("Follow-up in six weeks"))

	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #1", res.Text)

	var texts []string
	for _, p := range f.model.request().Parts {
		texts = append(texts, p.Text)
	}
	assert.Contains(t, texts, "Follow-up in six weeks")
	assert.Contains(t, texts, "[file unreadable]")
	assert.Contains(t, texts[1], "1. lost-scan.pdf (pdf, 42 B) - file unreadable")
}

func TestEmptyTextFileIsLabelled(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "blank.txt", []byte("  \n"))
	f.addDoc(t, "notes.txt", []byte("Follow-up in six weeks"))

	_, err := f.svc.GetOrGenerateSummary(context.Background(), f.folder.ID, false)
	require.NoError(t, err)

	req := f.model.request()
	require.Len(t, req.Parts, 6)
	assert.Contains(t, req.Parts[1].Text, "1. blank.txt (txt, 3 B) - empty file")
	assert.Equal(t, "[empty file]", req.Parts[3].Text)
	for _, p := range req.Parts {
		assert.NotContains(t, p.Text, "content not extracted")
	}
}

func TestPayloadFollowsListingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a.txt", []byte("alpha content"))
	f.addDoc(t, "b.txt", []byte("beta content"))

	_, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)

	req := f.model.request()
	assert.Equal(t, folderSummarySystemPrompt, req.System)
	assert.Equal(t, 512, req.MaxTokens)
	require.Len(t, req.Parts, 6)
	assert.Equal(t, folderSummaryInstruction, req.Parts[0].Text)
	assert.Contains(t, req.Parts[1].Text, "Files in this folder (2):")
	assert.Equal(t, "=== File 1: a.txt (txt, 13 B) ===", req.Parts[2].Text)
	assert.Equal(t, "alpha content", req.Parts[3].Text)
	assert.Equal(t, "=== File 2: b.txt (txt, 12 B) ===", req.Parts[4].Text)
	assert.Equal(t, "beta content", req.Parts[5].Text)
}

func TestModelFailureIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))
	f.model.err = &ai.StatusError{Provider: "test", StatusCode: 500, Message: "boom"}

	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, GenerationErrorText, res.Text)
	assert.Nil(t, res.LastUpdated)

	rec, err := f.store.Get(ctx, f.folder.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	f.model.mu.Lock()
	f.model.err = nil
	f.model.mu.Unlock()
	res, err = f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #2", res.Text)
}

func TestUnconfiguredModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))
	svc := f.newService(ai.Unavailable{Err: ai.ErrMissingCredential})

	res, err := svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredText, res.Text)

	rec, err := f.store.Get(ctx, f.folder.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPersistenceFailureReturnsText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))

	gen := NewGenerator(failingUpsertStore{f.store}, f.blobs, f.svc.gen.extractor, f.model, 512, zap.NewNop())
	svc := NewService(f.docs, failingUpsertStore{f.store}, gen, Options{}, nil, nil, zap.NewNop())

	res, err := svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "upsert", perr.Op)
	assert.Equal(t, "summary #1", res.Text)
}

func TestFingerprintErrorDegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.docs.err = errors.New("database is locked")

	_, _, err := f.svc.Fingerprint(ctx, f.folder.ID)
	var fpErr *FingerprintError
	require.ErrorAs(t, err, &fpErr)
	assert.Equal(t, f.folder.ID, fpErr.FolderID)

	assert.Equal(t, Decision{true, ReasonFingerprintError}, f.svc.NeedsRegeneration(ctx, f.folder.ID, false))

	res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, GenerationErrorText, res.Text)
	assert.Zero(t, f.model.calls.Load())
}

func TestConcurrentRequestsShareOneGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))
	f.model.block = make(chan struct{})

	const callers = 5
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return f.model.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.model.block)
	wg.Wait()

	assert.EqualValues(t, 1, f.model.calls.Load())
	for _, res := range results {
		assert.Equal(t, "summary #1", res.Text)
	}
}

func TestWaitsForLockHolderInAnotherProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.addDoc(t, "labs.txt", []byte("Hemoglobin"))

	mr := miniredis.RunT(t)
	rc, err := redis.Connect("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	gen := NewGenerator(f.store, f.blobs, f.svc.gen.extractor, f.model, 512, zap.NewNop())
	gen.now = f.clock.Now
	svc := NewService(f.docs, f.store, gen, Options{LockPoll: 10 * time.Millisecond, LockTTL: 5 * time.Second}, rc, nil, zap.NewNop())
	svc.now = f.clock.Now

	peer, err := rc.TryLock(ctx, lockKeyPrefix+f.folder.ID, time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		fp := Fingerprint([]DocumentKey{{Filename: doc.Filename, ContentHash: doc.ContentHash, FileSize: doc.FileSize}})
		_ = f.store.Upsert(ctx, f.folder.ID, "written by peer", fp, f.clock.Now())
		_ = peer.Release(ctx)
	}()

	res, err := svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "written by peer", res.Text)
	assert.True(t, res.Cached)
	assert.Zero(t, f.model.calls.Load())
	assert.False(t, mr.Exists(lockKeyPrefix+f.folder.ID))
}

func TestGeneratesWhenLockHolderGivesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))

	mr := miniredis.RunT(t)
	rc, err := redis.Connect("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	svc := NewService(f.docs, f.store, f.svc.gen, Options{LockPoll: 10 * time.Millisecond}, rc, nil, zap.NewNop())
	peer, err := rc.TryLock(ctx, lockKeyPrefix+f.folder.ID, time.Minute)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = peer.Release(ctx)
	}()

	res, err := svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary #1", res.Text)
	assert.EqualValues(t, 1, f.model.calls.Load())
}

func TestForgetDropsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))

	_, err := f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.Forget(ctx, f.folder.ID))
	assert.Equal(t, Decision{true, ReasonMissing}, f.svc.NeedsRegeneration(ctx, f.folder.ID, false))
}

func TestMetricsCountDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "labs.txt", []byte("Hemoglobin"))

	_, _ = f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	_, _ = f.svc.GetOrGenerateSummary(ctx, f.folder.ID, false)
	_, _ = f.svc.GenerateSummary(ctx, f.folder.ID)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.decisions.WithLabelValues(string(ReasonMissing))))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.decisions.WithLabelValues(string(ReasonFresh))))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.decisions.WithLabelValues(string(ReasonForced))))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.generations.WithLabelValues("ok")))
}
