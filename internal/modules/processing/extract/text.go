package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const truncationMarker = "\n\n[... truncated ...]"

type textExtractor struct {
	maxChars int
}

func (t *textExtractor) extract(_ context.Context, doc Document, data []byte) ([]Fragment, error) {
	isHTML := doc.FileType == "html" || doc.FileType == "htm"

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}
	text := DecodeText(data, contentType)

	if isHTML {
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		text = md
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Fragment{TextFragment(truncateRunes(text, t.maxChars))}, nil
}

// DecodeText decodes raw bytes with the detected charset, replacing invalid
// sequences instead of failing. Without a BOM or declared charset, any valid
// multi-byte UTF-8 sequence in the input selects UTF-8 over the legacy guess.
func DecodeText(raw []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" || (!certain && hasUTF8Sequences(raw)) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err == nil {
			return strings.ToValidUTF8(string(out), string(utf8.RuneError))
		}
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}

// hasUTF8Sequences reports whether raw holds at least one well-formed
// multi-byte UTF-8 character.
func hasUTF8Sequences(raw []byte) bool {
	for i := 0; i < len(raw); {
		if raw[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(raw[i:])
		if r != utf8.RuneError || size > 1 {
			return true
		}
		i++
	}
	return false
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + truncationMarker
}
