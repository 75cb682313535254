package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	StatusOK           = "ok"
	StatusMetadataOnly = "metadata only"
	StatusUnreadable   = "file unreadable"
	StatusEmpty        = "empty file"
	StatusNoContent    = "no extractable content"

	defaultMaxPDFImages = 15
	defaultMaxImageEdge = 1568
	defaultMaxTextChars = 200_000
	defaultMaxBytes     = 32 << 20
)

// Kind is the closed set of document variants the extractor understands.
type Kind int

const (
	KindBinary Kind = iota
	KindImage
	KindPDF
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindText:
		return "text"
	default:
		return "binary"
	}
}

// FragmentType tags a Fragment.
type FragmentType int

const (
	FragmentText FragmentType = iota
	FragmentImage
	FragmentMetadata
)

// Fragment is one unit of document content handed to the model.
type Fragment struct {
	Type     FragmentType
	Text     string
	Data     []byte
	MIMEType string
	Page     int    // source page for PDF images, 1-based
	Format   string // image format, e.g. "jpeg"
}

func TextFragment(text string) Fragment { return Fragment{Type: FragmentText, Text: text} }

func ImageFragment(data []byte, mimeType string) Fragment {
	return Fragment{Type: FragmentImage, Data: data, MIMEType: mimeType, Format: formatFromMIME(mimeType)}
}

func MetadataFragment(note string) Fragment { return Fragment{Type: FragmentMetadata, Text: note} }

// Document is the extractor's view of a stored file.
type Document struct {
	Filename string
	FileType string // lower-case extension without the dot
	Size     int64
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

// Extraction is the outcome for one document. Err is set only when the
// document degraded to StatusUnreadable.
type Extraction struct {
	Kind      Kind
	Status    string
	Fragments []Fragment
	Err       error
}

// Options bounds extraction output.
type Options struct {
	MaxPDFImages int
	MaxImageEdge int
	MaxTextChars int
	MaxBytes     int64
}

type kindExtractor interface {
	extract(ctx context.Context, doc Document, data []byte) ([]Fragment, error)
}

// Extractor turns documents into fragments. It is safe for concurrent use.
type Extractor struct {
	opts  Options
	log   *zap.Logger
	kinds map[Kind]kindExtractor
}

func New(opts Options, log *zap.Logger) *Extractor {
	if opts.MaxPDFImages <= 0 {
		opts.MaxPDFImages = defaultMaxPDFImages
	}
	if opts.MaxImageEdge <= 0 {
		opts.MaxImageEdge = defaultMaxImageEdge
	}
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = defaultMaxTextChars
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if log == nil {
		log = zap.NewNop()
	}

	images := &imageExtractor{maxEdge: opts.MaxImageEdge}
	return &Extractor{
		opts: opts,
		log:  log,
		kinds: map[Kind]kindExtractor{
			KindImage: images,
			KindPDF:   &pdfExtractor{maxImages: opts.MaxPDFImages, images: images},
			KindText:  &textExtractor{maxChars: opts.MaxTextChars},
		},
	}
}

var (
	imageTypes  = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
	textTypes   = map[string]bool{"txt": true, "md": true, "csv": true, "json": true, "xml": true, "html": true, "htm": true}
	binaryTypes = map[string]bool{"doc": true, "docx": true, "xls": true, "xlsx": true}
)

// KindForType maps a file extension to a Kind. Unknown extensions report ok=false.
func KindForType(fileType string) (Kind, bool) {
	t := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
	switch {
	case imageTypes[t]:
		return KindImage, true
	case t == "pdf":
		return KindPDF, true
	case textTypes[t]:
		return KindText, true
	case binaryTypes[t]:
		return KindBinary, true
	default:
		return KindBinary, false
	}
}

// KindForContent sniffs data for files whose extension is not recognized.
func KindForContent(data []byte) Kind {
	mt := mimetype.Detect(data)
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return KindImage
	case mt.Is("application/pdf"):
		return KindPDF
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return KindText
		}
	}
	return KindBinary
}

// Extract never fails: any error degrades the document to a metadata fragment.
func (e *Extractor) Extract(ctx context.Context, doc Document) (out Extraction) {
	kind, known := KindForType(doc.FileType)
	if known && kind == KindBinary {
		return Extraction{Kind: KindBinary, Status: StatusMetadataOnly}
	}

	defer func() {
		if r := recover(); r != nil {
			out = e.unreadable(kind, doc, fmt.Errorf("extract panic: %v", r))
		}
	}()

	data, err := e.read(ctx, doc)
	if err != nil {
		return e.unreadable(kind, doc, err)
	}
	if !known {
		kind = KindForContent(data)
		if kind == KindBinary {
			return Extraction{Kind: KindBinary, Status: StatusMetadataOnly}
		}
	}

	fragments, err := e.kinds[kind].extract(ctx, doc, data)
	if err != nil {
		return e.unreadable(kind, doc, err)
	}
	if len(fragments) == 0 {
		status := StatusNoContent
		if kind == KindText {
			status = StatusEmpty
		}
		return Extraction{Kind: kind, Status: status, Fragments: []Fragment{MetadataFragment(status)}}
	}
	return Extraction{Kind: kind, Status: StatusOK, Fragments: fragments}
}

func (e *Extractor) read(ctx context.Context, doc Document) ([]byte, error) {
	if doc.Open == nil {
		return nil, errors.New("document has no byte source")
	}
	rc, err := doc.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc.Filename, err)
	}
	if int64(len(data)) > e.opts.MaxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", doc.Filename, e.opts.MaxBytes)
	}
	return data, nil
}

func (e *Extractor) unreadable(kind Kind, doc Document, err error) Extraction {
	e.log.Warn("document extraction failed",
		zap.String("filename", doc.Filename),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
	return Extraction{
		Kind:      kind,
		Status:    StatusUnreadable,
		Fragments: []Fragment{MetadataFragment(StatusUnreadable)},
		Err:       err,
	}
}

func formatFromMIME(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if i := strings.IndexByte(format, ';'); i >= 0 {
		format = format[:i]
	}
	return format
}
