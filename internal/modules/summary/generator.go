package summary

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/medvault/portal/internal/models"
	"github.com/medvault/portal/internal/modules/processing/ai"
	"github.com/medvault/portal/internal/modules/processing/extract"
	"github.com/medvault/portal/internal/pkg/blob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const extractConcurrency = 4

// Generation is one run of the generator. Degraded is set when Text is a
// fallback message rather than model output; such text is never cached.
type Generation struct {
	Text        string
	LastUpdated *time.Time
	Degraded    bool
}

// Generator builds the model payload for a folder, calls the model once and
// caches the answer.
type Generator struct {
	store     Store
	blobs     blob.Store
	extractor *extract.Extractor
	model     ai.Model
	maxTokens int
	log       *zap.Logger
	now       func() time.Time
}

func NewGenerator(store Store, blobs blob.Store, extractor *extract.Extractor, model ai.Model, maxTokens int, log *zap.Logger) *Generator {
	if model == nil {
		model = ai.Unavailable{Err: ai.ErrNoProvider}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		model:     model,
		maxTokens: maxTokens,
		log:       log,
		now:       time.Now,
	}
}

// Generate returns displayable text in every case. The error is non-nil only
// for a PersistenceError, in which case Text still holds the fresh summary.
func (g *Generator) Generate(ctx context.Context, folderID string, docs []models.DocumentModel, fingerprint string) (Generation, error) {
	if len(docs) == 0 {
		return Generation{Text: EmptyFolderText, Degraded: true}, nil
	}

	extractions := g.extractAll(ctx, folderID, docs)

	text, err := g.model.Generate(ctx, ai.Request{
		System:    folderSummarySystemPrompt,
		Parts:     buildPayload(docs, extractions),
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		if errors.Is(err, ai.ErrMissingCredential) || errors.Is(err, ai.ErrNoProvider) {
			g.log.Error("summary generation not configured", zap.String("folder_id", folderID), zap.Error(&ConfigurationError{Err: err}))
			return Generation{Text: NotConfiguredText, Degraded: true}, nil
		}
		g.log.Error("summary generation failed", zap.String("folder_id", folderID), zap.Error(&ExternalServiceError{Err: err}))
		return Generation{Text: GenerationErrorText, Degraded: true}, nil
	}

	now := g.now().UTC()
	if err := g.store.Upsert(ctx, folderID, text, fingerprint, now); err != nil {
		g.log.Error("summary cache write failed", zap.String("folder_id", folderID), zap.Error(err))
		return Generation{Text: text}, err
	}
	return Generation{Text: text, LastUpdated: &now}, nil
}

func (g *Generator) extractAll(ctx context.Context, folderID string, docs []models.DocumentModel) []extract.Extraction {
	extractions := make([]extract.Extraction, len(docs))

	var eg errgroup.Group
	eg.SetLimit(extractConcurrency)
	for i := range docs {
		doc := docs[i]
		eg.Go(func() error {
			extractions[i] = g.extractor.Extract(ctx, g.extractDocument(doc))
			if extractions[i].Err != nil {
				g.log.Warn("document unreadable",
					zap.String("folder_id", folderID),
					zap.String("document_id", doc.ID),
					zap.Error(&ExtractionError{Filename: doc.Filename, Err: extractions[i].Err}),
				)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return extractions
}

func (g *Generator) extractDocument(doc models.DocumentModel) extract.Document {
	return extract.Document{
		Filename: doc.Filename,
		FileType: doc.FileType,
		Size:     doc.FileSize,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return g.blobs.Open(ctx, doc.StorageKey)
		},
	}
}
