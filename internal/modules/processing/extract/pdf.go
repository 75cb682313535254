package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	maxFormDepth      = 2
	maxRasterPixels   = 40_000_000
	jpegStreamSlack   = 2
	pageTextSeparator = "\n\n"
)

var errUnsupportedImage = errors.New("unsupported pdf image")

type pdfExtractor struct {
	maxImages int
	images    *imageExtractor
}

type pdfImages struct {
	out   []Fragment
	seen  map[[sha256.Size]byte]bool
	jpegs *jpegPool
	limit int
}

func (p *pdfExtractor) extract(ctx context.Context, _ Document, data []byte) ([]Fragment, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	numPages := r.NumPage()
	if numPages <= 0 {
		return nil, errors.New("pdf has no pages")
	}

	images := &pdfImages{
		seen:  make(map[[sha256.Size]byte]bool),
		jpegs: carveJPEGStreams(data),
		limit: p.maxImages,
	}
	var texts []string
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := pageText(page); text != "" {
			texts = append(texts, text)
		}
		if len(images.out) < images.limit {
			_ = recoverPanic(func() {
				p.collectImages(page.Resources(), i, images, 0)
			})
		}
	}

	fragments := make([]Fragment, 0, 1+len(images.out))
	if len(texts) > 0 {
		fragments = append(fragments, TextFragment(strings.Join(texts, pageTextSeparator)))
	}
	return append(fragments, images.out...), nil
}

func pageText(page pdf.Page) string {
	var text string
	err := recoverPanic(func() {
		text, _ = page.GetPlainText(nil)
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (p *pdfExtractor) collectImages(resources pdf.Value, pageNum int, acc *pdfImages, depth int) {
	xobjects := resources.Key("XObject")
	for _, name := range xobjects.Keys() {
		if len(acc.out) >= acc.limit {
			return
		}
		x := xobjects.Key(name)
		switch x.Key("Subtype").Name() {
		case "Image":
			frag, err := p.decodeImage(x, acc.jpegs)
			if err != nil {
				continue
			}
			sum := sha256.Sum256(frag.Data)
			if acc.seen[sum] {
				continue
			}
			acc.seen[sum] = true
			frag.Page = pageNum
			acc.out = append(acc.out, frag)
		case "Form":
			if depth < maxFormDepth {
				p.collectImages(x.Key("Resources"), pageNum, acc, depth+1)
			}
		}
	}
}

func (p *pdfExtractor) decodeImage(x pdf.Value, jpegs *jpegPool) (frag Fragment, err error) {
	if panicErr := recoverPanic(func() {
		switch imageFilter(x) {
		case "DCTDecode":
			data := jpegs.take(x.Key("Length").Int64())
			if data == nil {
				err = errUnsupportedImage
				return
			}
			data, mt, fitErr := p.images.fit(data, "image/jpeg")
			if fitErr != nil {
				err = fitErr
				return
			}
			frag = ImageFragment(data, mt)
		case "", "FlateDecode":
			img, decodeErr := decodeRaster(x)
			if decodeErr != nil {
				err = decodeErr
				return
			}
			data, mt, encodeErr := p.images.encode(p.images.fitImage(img), true)
			if encodeErr != nil {
				err = encodeErr
				return
			}
			frag = ImageFragment(data, mt)
		default:
			err = errUnsupportedImage
		}
	}); panicErr != nil {
		return Fragment{}, panicErr
	}
	return frag, err
}

func imageFilter(x pdf.Value) string {
	filter := x.Key("Filter")
	switch filter.Kind() {
	case pdf.Null:
		return ""
	case pdf.Name:
		return filter.Name()
	case pdf.Array:
		if filter.Len() == 1 {
			return filter.Index(0).Name()
		}
	}
	return "unsupported"
}

// decodeRaster reads an 8-bit Gray, RGB or CMYK sample stream into an image.
func decodeRaster(x pdf.Value) (image.Image, error) {
	if x.Key("ImageMask").Bool() {
		return nil, errUnsupportedImage
	}
	w := int(x.Key("Width").Int64())
	h := int(x.Key("Height").Int64())
	if w <= 0 || h <= 0 || w*h > maxRasterPixels || x.Key("BitsPerComponent").Int64() != 8 {
		return nil, errUnsupportedImage
	}
	comps := colorComponents(x.Key("ColorSpace"))
	if comps == 0 {
		return nil, errUnsupportedImage
	}

	rc := x.Reader()
	defer rc.Close()
	want := w * h * comps
	raw, err := io.ReadAll(io.LimitReader(rc, int64(want)))
	if err != nil {
		return nil, err
	}
	if len(raw) < want {
		return nil, fmt.Errorf("short image stream: %d of %d bytes", len(raw), want)
	}

	rect := image.Rect(0, 0, w, h)
	switch comps {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, raw)
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(raw); i, j = i+3, j+4 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = raw[i], raw[i+1], raw[i+2], 0xff
		}
		return img, nil
	default:
		img := image.NewRGBA(rect)
		for i, px := 0, 0; i < len(raw); i, px = i+4, px+1 {
			r, g, b := color.CMYKToRGB(raw[i], raw[i+1], raw[i+2], raw[i+3])
			img.Pix[px*4], img.Pix[px*4+1], img.Pix[px*4+2], img.Pix[px*4+3] = r, g, b, 0xff
		}
		return img, nil
	}
}

func colorComponents(cs pdf.Value) int {
	name := cs.Name()
	if cs.Kind() == pdf.Array {
		name = cs.Index(0).Name()
		if name == "ICCBased" {
			n := int(cs.Index(1).Key("N").Int64())
			if n == 1 || n == 3 || n == 4 {
				return n
			}
			return 0
		}
	}
	switch name {
	case "DeviceGray", "CalGray":
		return 1
	case "DeviceRGB", "CalRGB":
		return 3
	case "DeviceCMYK":
		return 4
	}
	return 0
}

// jpegPool holds raw DCT streams carved out of the file. The pdf reader has no
// DCT filter, so JPEG payloads are matched back to their XObject by Length.
type jpegPool struct {
	streams [][]byte
	used    []bool
}

func carveJPEGStreams(data []byte) *jpegPool {
	pool := &jpegPool{}
	keyword := []byte("stream")
	soi := []byte{0xFF, 0xD8, 0xFF}
	endKeyword := []byte("endstream")

	for i := 0; i < len(data); {
		j := bytes.Index(data[i:], keyword)
		if j < 0 {
			break
		}
		at := i + j
		start := at + len(keyword)
		if at >= 3 && string(data[at-3:at]) == "end" {
			i = start
			continue
		}
		if start < len(data) && data[start] == '\r' {
			start++
		}
		if start < len(data) && data[start] == '\n' {
			start++
		}
		if !bytes.HasPrefix(data[start:], soi) {
			i = start
			continue
		}
		end := bytes.Index(data[start:], endKeyword)
		if end < 0 {
			break
		}
		pool.streams = append(pool.streams, data[start:start+end])
		pool.used = append(pool.used, false)
		i = start + end + len(endKeyword)
	}
	return pool
}

// take returns the first unused stream whose size matches length, allowing for
// the end-of-line before endstream.
func (p *jpegPool) take(length int64) []byte {
	if length <= 0 {
		return nil
	}
	for i, s := range p.streams {
		n := int64(len(s))
		if p.used[i] || n < length || n-length > jpegStreamSlack {
			continue
		}
		p.used[i] = true
		return s[:length]
	}
	return nil
}

func recoverPanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: %v", r)
		}
	}()
	fn()
	return nil
}
