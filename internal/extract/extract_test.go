package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	output   []byte
	err      error
	lastName string
	lastArgs []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.lastName = name
	f.lastArgs = args
	return f.output, f.err
}

func TestKindOf(t *testing.T) {
	cases := map[string]struct {
		kind Kind
		ok   bool
	}{
		"report.pdf":   {KindPDF, true},
		"REPORT.PDF":   {KindPDF, true},
		"scan.png":     {KindImage, true},
		"scan.JPEG":    {KindImage, true},
		"scan.jpg":     {KindImage, true},
		"notes.txt":    {"", false},
		"no-extension": {"", false},
	}
	for path, want := range cases {
		kind, ok := KindOf(path)
		require.Equal(t, want.ok, ok, path)
		require.Equal(t, want.kind, kind, path)
	}
}

func TestExtract_PDFJoinsPagesInOrder(t *testing.T) {
	r := &fakeRunner{output: []byte("page one\n\fpage two\n\f")}
	e := New(WithRunner(r), WithPDFToText("/opt/bin/pdftotext"))

	text, err := e.Extract(context.Background(), "/tmp/report.pdf")
	require.NoError(t, err)
	require.Equal(t, "page one\npage two\n", text)
	require.Equal(t, "/opt/bin/pdftotext", r.lastName)
	require.Equal(t, []string{"-layout", "-enc", "UTF-8", "/tmp/report.pdf", "-"}, r.lastArgs)
}

func TestExtract_ImageUsesOCR(t *testing.T) {
	r := &fakeRunner{output: []byte("Math: A\n")}
	e := New(WithRunner(r))

	text, err := e.Extract(context.Background(), "/tmp/card.png")
	require.NoError(t, err)
	require.Equal(t, "Math: A\n", text)
	require.Equal(t, "tesseract", r.lastName)
	require.Equal(t, []string{"/tmp/card.png", "stdout"}, r.lastArgs)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	r := &fakeRunner{}
	_, err := New(WithRunner(r)).Extract(context.Background(), "/tmp/notes.docx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Empty(t, r.lastName)
}

func TestExtract_RunnerError(t *testing.T) {
	r := &fakeRunner{err: errors.New("pdftotext crashed")}
	_, err := New(WithRunner(r)).Extract(context.Background(), "/tmp/report.pdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "pdftotext failed")
}
