package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"conference-assistant/internal/domain"
)

// DocumentService ingests uploaded reports into the vector index.
type DocumentService struct {
	extractor TextExtractor
	splitter  TextSplitter
	index     VectorIndex
	uploadDir string
}

func NewDocumentService(extractor TextExtractor, splitter TextSplitter, index VectorIndex, uploadDir string) (*DocumentService, error) {
	if extractor == nil {
		return nil, errors.New("usecase: extractor must not be nil")
	}
	if splitter == nil {
		return nil, errors.New("usecase: splitter must not be nil")
	}
	if index == nil {
		return nil, errors.New("usecase: vector index must not be nil")
	}
	uploadDir = strings.TrimSpace(uploadDir)
	if uploadDir == "" {
		return nil, errors.New("usecase: upload dir must not be empty")
	}
	return &DocumentService{
		extractor: extractor,
		splitter:  splitter,
		index:     index,
		uploadDir: uploadDir,
	}, nil
}

// ProcessDocument extracts, chunks and indexes the file at path and returns
// the new document id.
func (s *DocumentService) ProcessDocument(ctx context.Context, path string) (string, error) {
	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			return "", newError(ErrorUnsupportedFormat, "unsupported_extension", err)
		}
		return "", newError(ErrorInternal, "extraction_error", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", newError(ErrorEmptyExtraction, "no_text_extracted", nil)
	}

	chunks, err := s.splitter.Split(text)
	if err != nil {
		return "", newError(ErrorInternal, "chunking_error", err)
	}

	id := newUUID()
	metadata := make([]map[string]string, len(chunks))
	for i := range chunks {
		metadata[i] = map[string]string{
			domain.MetaDocumentID: id,
			domain.MetaChunkIndex: strconv.Itoa(i),
		}
	}
	if err := s.index.Add(ctx, chunks, metadata); err != nil {
		if _, derr := s.index.Delete(ctx, map[string]string{domain.MetaDocumentID: id}); derr != nil {
			logger(ctx).Warn("failed to roll back partial index write", "document_id", id, "err", derr)
		}
		return "", newError(ErrorInternal, "index_write_error", err)
	}

	logger(ctx).Info("document indexed", "document_id", id, "chunks", len(chunks))
	return id, nil
}

// UploadDocument stages r in the upload directory, processes it and keeps the
// file as {document_id}_{filename}.
func (s *DocumentService) UploadDocument(ctx context.Context, filename string, r io.Reader) (string, error) {
	base, ok := cleanFilename(filename)
	if !ok {
		return "", newError(ErrorInvalidInput, "invalid_filename", nil)
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", newError(ErrorInternal, "upload_dir_error", err)
	}

	staged, err := os.CreateTemp(s.uploadDir, "staged-*"+filepath.Ext(base))
	if err != nil {
		return "", newError(ErrorInternal, "upload_stage_error", err)
	}
	stagedPath := staged.Name()
	staged.Close()
	if err := writeFile(stagedPath, r); err != nil {
		return "", newError(ErrorInternal, "upload_write_error", err)
	}

	id, err := s.ProcessDocument(ctx, stagedPath)
	if err != nil {
		if rerr := os.Remove(stagedPath); rerr != nil {
			logger(ctx).Warn("failed to remove staged upload", "path", stagedPath, "err", rerr)
		}
		return "", err
	}

	final := filepath.Join(s.uploadDir, id+"_"+base)
	if err := os.Rename(stagedPath, final); err != nil {
		logger(ctx).Warn("failed to keep uploaded file", "document_id", id, "err", err)
		os.Remove(stagedPath)
	}
	return id, nil
}

// DeleteDocument removes a document's chunks and stored upload.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorInvalidInput, "empty_document_id", nil)
	}
	n, err := s.index.Delete(ctx, map[string]string{domain.MetaDocumentID: id})
	if err != nil {
		return newError(ErrorInternal, "index_delete_error", err)
	}
	files := removePrefixed(ctx, s.uploadDir, id+"_")
	if n == 0 && files == 0 {
		return newError(ErrorNotFound, "document_not_found", domain.ErrNotFound)
	}
	logger(ctx).Info("document deleted", "document_id", id, "chunks", n, "files", files)
	return nil
}
