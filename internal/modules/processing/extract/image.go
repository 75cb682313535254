package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

type encodeFunc func(w io.Writer, img image.Image, format imaging.Format, opts ...imaging.EncodeOption) error

type imageExtractor struct {
	maxEdge int
	// encodeImage defaults to imaging.Encode.
	encodeImage encodeFunc
}

func (x *imageExtractor) extract(_ context.Context, _ Document, data []byte) ([]Fragment, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	mt := mimetype.Detect(data).String()
	if !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("content is %s, not an image", mt)
	}

	data, mt, err := x.fit(data, mt)
	if err != nil {
		return nil, err
	}
	return []Fragment{ImageFragment(data, mt)}, nil
}

// fit downscales images whose longer edge exceeds maxEdge. Formats the
// decoder does not know are returned unchanged.
func (x *imageExtractor) fit(data []byte, mimeType string) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= x.maxEdge && cfg.Height <= x.maxEdge) {
		return data, mimeType, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, mimeType, nil
	}
	return x.encode(imaging.Fit(img, x.maxEdge, x.maxEdge, imaging.Lanczos), format != "jpeg")
}

func (x *imageExtractor) encode(img image.Image, lossless bool) ([]byte, string, error) {
	encode := x.encodeImage
	if encode == nil {
		encode = imaging.Encode
	}

	var buf bytes.Buffer
	if lossless {
		if err := encode(&buf, img, imaging.PNG); err == nil {
			return buf.Bytes(), "image/png", nil
		}
		buf.Reset()
	}
	if err := encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("re-encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func (x *imageExtractor) fitImage(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= x.maxEdge && b.Dy() <= x.maxEdge {
		return img
	}
	return imaging.Fit(img, x.maxEdge, x.maxEdge, imaging.Lanczos)
}
