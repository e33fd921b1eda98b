package extractors

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// PDFExtractor converts raw PDF bytes into normalized text via docconv.
// Inputs over the configured byte or page limits are rejected before parsing.
type PDFExtractor struct {
	maxBytes int
	maxPages int
}

func NewPDFExtractor(maxBytes, maxPages int) *PDFExtractor {
	return &PDFExtractor{maxBytes: maxBytes, maxPages: maxPages}
}

var _ core.Extractor = (*PDFExtractor)(nil)

func (e *PDFExtractor) Extract(ctx context.Context, in core.ExtractorInput) (string, map[string]string, error) {
	if len(in.Data) == 0 {
		return "", nil, core.Errf(core.KindUnreadableDocument, "empty PDF input")
	}
	if e.maxBytes > 0 && len(in.Data) > e.maxBytes {
		return "", nil, core.Errf(core.KindInputTooLarge, "PDF is %d bytes, limit %d", len(in.Data), e.maxBytes)
	}

	pages := countPDFPages(in.Data)
	if e.maxPages > 0 && pages > e.maxPages {
		return "", nil, core.Errf(core.KindInputTooLarge, "PDF has %d pages, limit %d", pages, e.maxPages)
	}

	res, err := docconv.Convert(bytes.NewReader(in.Data), "application/pdf", false)
	if err != nil {
		return "", nil, core.WrapErr(core.KindUnreadableDocument, err, "pdf conversion")
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	meta := map[string]string{
		core.MetaPageCount: strconv.Itoa(pages),
	}
	// docconv surfaces embedded PDF metadata when the producer set it.
	if t := res.Meta["Title"]; t != "" {
		meta[core.MetaTitle] = t
	}
	if a := res.Meta["Author"]; a != "" {
		meta[core.MetaAuthor] = a
	}

	// A scanned PDF with no text layer yields empty text, not an error; what
	// that means for the job is the pipeline's call.
	return normalizeText(res.Body), meta, nil
}

var pdfPageMarker = regexp.MustCompile(`/Type\s*/Page[^s]`)

// countPDFPages is a cheap pre-parse estimate: it counts page object markers
// in the raw bytes. Good enough to enforce an upper bound without a second
// full parse.
func countPDFPages(data []byte) int {
	return len(pdfPageMarker.FindAll(data, -1))
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// normalizeText trims trailing whitespace per line and collapses runs of
// blank lines, yielding the single normalized string the chunker consumes.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	out := strings.Join(lines, "\n")
	out = multiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
