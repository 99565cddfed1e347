// Package extract pulls plain text out of PDF and image files using
// pdftotext and tesseract.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"conference-assistant/internal/domain"
)

// ErrUnsupportedFormat is returned for file extensions with no extractor.
var ErrUnsupportedFormat = domain.ErrUnsupportedFormat

// Kind identifies which extractor handles a file.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

var kindsByExt = map[string]Kind{
	".pdf":  KindPDF,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".bmp":  KindImage,
	".gif":  KindImage,
}

// KindOf returns the extractor kind for path based on its extension.
func KindOf(path string) (Kind, bool) {
	k, ok := kindsByExt[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Extractor shells out to text extraction tools.
type Extractor struct {
	runner    CommandRunner
	pdftotext string
	tesseract string
}

type Option func(*Extractor)

func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithPDFToText overrides the pdftotext binary.
func WithPDFToText(bin string) Option {
	return func(e *Extractor) {
		if bin = strings.TrimSpace(bin); bin != "" {
			e.pdftotext = bin
		}
	}
}

// WithTesseract overrides the tesseract binary.
func WithTesseract(bin string) Option {
	return func(e *Extractor) {
		if bin = strings.TrimSpace(bin); bin != "" {
			e.tesseract = bin
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		runner:    ExecRunner{},
		pdftotext: "pdftotext",
		tesseract: "tesseract",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of the file at path. PDF pages are emitted in
// order, each followed by a newline.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	kind, ok := KindOf(path)
	if !ok {
		return "", fmt.Errorf("extract: %w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	switch kind {
	case KindPDF:
		return e.extractPDF(ctx, path)
	default:
		return e.extractImage(ctx, path)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("extract: pdftotext failed: %w", err)
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with a form feed too.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(strings.TrimRight(page, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, e.tesseract, path, "stdout")
	if err != nil {
		return "", fmt.Errorf("extract: tesseract failed: %w", err)
	}
	return string(out), nil
}
