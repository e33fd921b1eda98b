package extractors

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendocareer/ragpipeline/internal/core"
)

func TestPDFExtractEmptyInput(t *testing.T) {
	e := NewPDFExtractor(50<<20, 500)
	_, _, err := e.Extract(context.Background(), core.ExtractorInput{})
	require.Error(t, err)
	assert.Equal(t, core.KindUnreadableDocument, core.KindOf(err))
}

func TestPDFExtractRejectsOversizeBytes(t *testing.T) {
	e := NewPDFExtractor(1024, 500)
	_, _, err := e.Extract(context.Background(), core.ExtractorInput{
		Data: []byte(strings.Repeat("x", 2048)),
	})
	require.Error(t, err)
	assert.Equal(t, core.KindInputTooLarge, core.KindOf(err))
}

func TestPDFExtractRejectsTooManyPages(t *testing.T) {
	// A synthetic body with three page object markers and a two-page limit.
	body := "%PDF-1.4\n" +
		"1 0 obj << /Type /Page >> endobj\n" +
		"2 0 obj << /Type /Page >> endobj\n" +
		"3 0 obj << /Type /Page >> endobj\n" +
		"4 0 obj << /Type /Pages /Count 3 >> endobj\n"
	e := NewPDFExtractor(50<<20, 2)
	_, _, err := e.Extract(context.Background(), core.ExtractorInput{Data: []byte(body)})
	require.Error(t, err)
	assert.Equal(t, core.KindInputTooLarge, core.KindOf(err))
}

func TestCountPDFPages(t *testing.T) {
	data := []byte("<< /Type /Page >> << /Type/Page >> << /Type /Pages >>")
	assert.Equal(t, 2, countPDFPages(data))
	assert.Equal(t, 0, countPDFPages([]byte("no markers here")))
}

func TestNormalizeText(t *testing.T) {
	in := "line one   \nline two\t\n\n\n\n\nline three\r\n"
	out := normalizeText(in)
	assert.Equal(t, "line one\nline two\n\nline three", out)
}
