package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"conference-assistant/internal/chunker"
	"conference-assistant/internal/domain"
)

func newDocumentService(t *testing.T, ex *fakeExtractor, idx *fakeIndex, size, overlap int) (*DocumentService, string) {
	t.Helper()
	sp, err := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap))
	require.NoError(t, err)
	dir := t.TempDir()
	svc, err := NewDocumentService(ex, sp, idx, dir)
	require.NoError(t, err)
	return svc, dir
}

func TestNewDocumentService_ValidatesDependencies(t *testing.T) {
	sp, err := chunker.New()
	require.NoError(t, err)

	_, err = NewDocumentService(nil, sp, &fakeIndex{}, "uploads")
	require.Error(t, err)
	_, err = NewDocumentService(&fakeExtractor{}, nil, &fakeIndex{}, "uploads")
	require.Error(t, err)
	_, err = NewDocumentService(&fakeExtractor{}, sp, nil, "uploads")
	require.Error(t, err)
	_, err = NewDocumentService(&fakeExtractor{}, sp, &fakeIndex{}, " ")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// ProcessDocument
// ---------------------------------------------------------------------------

func TestProcessDocument_IndexesChunksWithMetadata(t *testing.T) {
	pinUUID(t, "doc-1")
	idx := &fakeIndex{}
	svc, _ := newDocumentService(t, &fakeExtractor{text: "abcdefghij"}, idx, 4, 1)

	id, err := svc.ProcessDocument(context.Background(), "report.pdf")
	require.NoError(t, err)
	require.Equal(t, "doc-1", id)
	require.Equal(t, []string{"abcd", "defg", "ghij"}, idx.texts)
	for i, m := range idx.metadata {
		require.Equal(t, map[string]string{domain.MetaDocumentID: "doc-1", domain.MetaChunkIndex: fmt.Sprint(i)}, m)
	}
}

func TestProcessDocument_UnsupportedFormat(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("extract: %w: %q", domain.ErrUnsupportedFormat, ".docx")}
	svc, _ := newDocumentService(t, ex, &fakeIndex{}, 10, 2)

	_, err := svc.ProcessDocument(context.Background(), "report.docx")
	requireCode(t, err, ErrorUnsupportedFormat)
}

func TestProcessDocument_EmptyExtraction(t *testing.T) {
	idx := &fakeIndex{}
	svc, _ := newDocumentService(t, &fakeExtractor{text: " \n\t "}, idx, 10, 2)

	_, err := svc.ProcessDocument(context.Background(), "scan.png")
	requireCode(t, err, ErrorEmptyExtraction)
	require.Empty(t, idx.texts)
}

func TestProcessDocument_ExtractorFailure(t *testing.T) {
	svc, _ := newDocumentService(t, &fakeExtractor{err: errors.New("pdftotext crashed")}, &fakeIndex{}, 10, 2)

	_, err := svc.ProcessDocument(context.Background(), "report.pdf")
	requireCode(t, err, ErrorInternal)
	require.ErrorContains(t, err, "pdftotext crashed")
}

func TestProcessDocument_IndexFailureRollsBack(t *testing.T) {
	pinUUID(t, "doc-2")
	idx := &fakeIndex{addErr: errors.New("disk full")}
	svc, _ := newDocumentService(t, &fakeExtractor{text: "some text"}, idx, 10, 2)

	id, err := svc.ProcessDocument(context.Background(), "report.pdf")
	requireCode(t, err, ErrorInternal)
	require.Empty(t, id)
	require.Equal(t, []map[string]string{{domain.MetaDocumentID: "doc-2"}}, idx.deletes)
}

// ---------------------------------------------------------------------------
// UploadDocument
// ---------------------------------------------------------------------------

func TestUploadDocument_KeepsFileUnderDocumentID(t *testing.T) {
	pinUUID(t, "doc-3")
	ex := &fakeExtractor{text: "A B C D E. F G H."}
	svc, dir := newDocumentService(t, ex, &fakeIndex{}, 1000, 200)

	id, err := svc.UploadDocument(context.Background(), "../../report card.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "doc-3", id)
	require.Equal(t, ".pdf", filepath.Ext(ex.gotPath))

	raw, err := os.ReadFile(filepath.Join(dir, "doc-3_report card.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestUploadDocument_FailureRemovesStagedFile(t *testing.T) {
	svc, dir := newDocumentService(t, &fakeExtractor{text: ""}, &fakeIndex{}, 10, 2)

	_, err := svc.UploadDocument(context.Background(), "blank.png", strings.NewReader("png"))
	requireCode(t, err, ErrorEmptyExtraction)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadDocument_InvalidFilename(t *testing.T) {
	svc, _ := newDocumentService(t, &fakeExtractor{}, &fakeIndex{}, 10, 2)

	_, err := svc.UploadDocument(context.Background(), "..", strings.NewReader(""))
	requireCode(t, err, ErrorInvalidInput)
}

// ---------------------------------------------------------------------------
// DeleteDocument
// ---------------------------------------------------------------------------

func TestDeleteDocument_RemovesChunksAndFiles(t *testing.T) {
	idx := &fakeIndex{
		texts:    []string{"a", "b", "c"},
		metadata: []map[string]string{{domain.MetaDocumentID: "doc-1"}, {domain.MetaDocumentID: "doc-2"}, {domain.MetaDocumentID: "doc-1"}},
	}
	svc, dir := newDocumentService(t, &fakeExtractor{}, idx, 10, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc-1_report.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc-2_report.pdf"), []byte("x"), 0o644))

	require.NoError(t, svc.DeleteDocument(context.Background(), "doc-1"))
	require.Equal(t, []string{"b"}, idx.texts)
	require.NoFileExists(t, filepath.Join(dir, "doc-1_report.pdf"))
	require.FileExists(t, filepath.Join(dir, "doc-2_report.pdf"))
}

func TestDeleteDocument_UnknownIsNotFound(t *testing.T) {
	svc, _ := newDocumentService(t, &fakeExtractor{}, &fakeIndex{}, 10, 2)

	err := svc.DeleteDocument(context.Background(), "missing")
	requireCode(t, err, ErrorNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocument_IndexError(t *testing.T) {
	svc, _ := newDocumentService(t, &fakeExtractor{}, &fakeIndex{deleteErr: errors.New("locked")}, 10, 2)

	err := svc.DeleteDocument(context.Background(), "doc-1")
	requireCode(t, err, ErrorInternal)
}

func TestDeleteDocument_EmptyID(t *testing.T) {
	svc, _ := newDocumentService(t, &fakeExtractor{}, &fakeIndex{}, 10, 2)

	requireCode(t, svc.DeleteDocument(context.Background(), " "), ErrorInvalidInput)
}
