package summary

import (
	"context"
	"errors"
	"time"

	"github.com/medvault/portal/internal/models"
	"github.com/medvault/portal/internal/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	lockKeyPrefix   = "medvault:summary:lock:"
	defaultLockTTL  = 2 * time.Minute
	defaultLockPoll = 250 * time.Millisecond
)

// DocumentSource lists the documents of a folder in display order.
type DocumentSource interface {
	ListDocuments(ctx context.Context, folderID string) ([]models.DocumentModel, error)
}

// Options tunes the service.
type Options struct {
	Cooldown time.Duration
	LockTTL  time.Duration
	LockPoll time.Duration
}

// Service is the caller-facing summary API.
type Service struct {
	docs     DocumentSource
	store    Store
	gen      *Generator
	policy   Policy
	locks    *redis.Client
	lockTTL  time.Duration
	lockPoll time.Duration
	metrics  *Metrics
	log      *zap.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService wires the summary pipeline. locks and metrics may be nil.
func NewService(docs DocumentSource, store Store, gen *Generator, opts Options, locks *redis.Client, metrics *Metrics, log *zap.Logger) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.LockPoll <= 0 {
		opts.LockPoll = defaultLockPoll
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:     docs,
		store:    store,
		gen:      gen,
		policy:   Policy{Cooldown: opts.Cooldown},
		locks:    locks,
		lockTTL:  opts.LockTTL,
		lockPoll: opts.LockPoll,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Fingerprint lists the folder and digests its document set.
func (s *Service) Fingerprint(ctx context.Context, folderID string) (string, []models.DocumentModel, error) {
	docs, err := s.docs.ListDocuments(ctx, folderID)
	if err != nil {
		return "", nil, &FingerprintError{FolderID: folderID, Err: err}
	}
	return Fingerprint(keysOf(docs)), docs, nil
}

// NeedsRegeneration evaluates the staleness policy for a folder.
func (s *Service) NeedsRegeneration(ctx context.Context, folderID string, force bool) Decision {
	fp, _, fpErr := s.Fingerprint(ctx, folderID)
	return s.policy.Decide(fp, fpErr, s.load(ctx, folderID), force, s.now())
}

// GetOrGenerateSummary serves the cached summary when it is fresh and
// regenerates it otherwise. Concurrent calls for the same folder share one run.
// The returned error is only ever a PersistenceError accompanying fresh text.
func (s *Service) GetOrGenerateSummary(ctx context.Context, folderID string, force bool) (Result, error) {
	key := folderID
	if force {
		key += ":force"
	}
	ctx = context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.resolve(ctx, folderID, force)
	})
	if shared {
		s.log.Debug("summary request coalesced", zap.String("folder_id", folderID))
	}
	res, _ := v.(Result)
	return res, err
}

// GenerateSummary regenerates unconditionally.
func (s *Service) GenerateSummary(ctx context.Context, folderID string) (string, error) {
	res, err := s.GetOrGenerateSummary(ctx, folderID, true)
	return res.Text, err
}

// Forget drops the cached summary of a folder.
func (s *Service) Forget(ctx context.Context, folderID string) error {
	return s.store.Delete(ctx, folderID)
}

func (s *Service) resolve(ctx context.Context, folderID string, force bool) (Result, error) {
	requestedAt := s.now()
	fp, docs, fpErr := s.Fingerprint(ctx, folderID)
	record := s.load(ctx, folderID)

	decision := s.policy.Decide(fp, fpErr, record, force, requestedAt)
	s.metrics.observeDecision(decision.Reason)
	s.log.Debug("summary decision",
		zap.String("folder_id", folderID),
		zap.Bool("regenerate", decision.Regenerate),
		zap.String("reason", string(decision.Reason)),
	)

	if !decision.Regenerate {
		return Result{Text: *record.SummaryText, LastUpdated: record.LastUpdated, Cached: true}, nil
	}
	if fpErr != nil {
		s.log.Error("summary regeneration impossible", zap.String("folder_id", folderID), zap.Error(fpErr))
		s.metrics.observeGeneration("degraded", 0)
		return Result{Text: GenerationErrorText}, nil
	}

	if s.locks != nil {
		lock, err := s.locks.TryLock(ctx, lockKeyPrefix+folderID, s.lockTTL)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			if res, ok := s.waitForPeer(ctx, folderID, fp, force, requestedAt); ok {
				return res, nil
			}
		case err != nil:
			s.log.Warn("summary lock unavailable", zap.String("folder_id", folderID), zap.Error(err))
		default:
			defer func() {
				if err := lock.Release(ctx); err != nil {
					s.log.Warn("summary lock release failed", zap.String("folder_id", folderID), zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	gen, err := s.gen.Generate(ctx, folderID, docs, fp)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "persist_error"
	case gen.Degraded:
		outcome = "degraded"
	}
	s.metrics.observeGeneration(outcome, time.Since(start).Seconds())

	return Result{Text: gen.Text, LastUpdated: gen.LastUpdated}, err
}

// waitForPeer polls while another process holds the folder lock and
// re-evaluates the policy against whatever the holder stored. A forced
// request is satisfied only by a record written after it arrived.
func (s *Service) waitForPeer(ctx context.Context, folderID, fp string, force bool, requestedAt time.Time) (Result, bool) {
	deadline := time.NewTimer(s.lockTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(s.lockPoll)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return Result{}, false
		case <-ticker.C:
		}

		held, err := s.locks.Exists(ctx, lockKeyPrefix+folderID)
		if rec := s.load(ctx, folderID); s.satisfiedBy(rec, fp, force, requestedAt) {
			return Result{Text: *rec.SummaryText, LastUpdated: rec.LastUpdated, Cached: true}, true
		}
		if err != nil || !held {
			return Result{}, false
		}
	}
}

func (s *Service) satisfiedBy(rec *Record, fp string, force bool, requestedAt time.Time) bool {
	if rec == nil || rec.SummaryText == nil || rec.LastUpdated == nil || rec.Fingerprint != fp {
		return false
	}
	if force {
		return !rec.LastUpdated.Before(requestedAt)
	}
	return !s.policy.Decide(fp, nil, rec, false, s.now()).Regenerate
}

// load reads the record, treating read failures as a miss.
func (s *Service) load(ctx context.Context, folderID string) *Record {
	record, err := s.store.Get(ctx, folderID)
	if err != nil {
		s.log.Warn("summary cache read failed", zap.String("folder_id", folderID), zap.Error(err))
		return nil
	}
	return record
}
