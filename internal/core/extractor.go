package core

import "context"

// ExtractorInput is the raw material handed to an extractor: bytes for
// uploaded files, a URL for websites. ContentType is the caller-supplied MIME
// hint for file inputs.
type ExtractorInput struct {
	Data        []byte
	URL         string
	ContentType string
	FileName    string
}

// Metadata keys emitted by extractors.
const (
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaAuthor      = "author"
	MetaDomain      = "domain"
	MetaSections    = "sections" // résumé section map, json-encoded
	MetaPageCount   = "page_count"
)

// Extractor converts one raw input into a single normalized text string plus
// source-specific metadata. Low-quality but readable inputs (e.g. a scanned
// PDF with no text layer) yield an empty string, not an error; the pipeline
// decides what empty text means.
type Extractor interface {
	Extract(ctx context.Context, in ExtractorInput) (text string, meta map[string]string, err error)
}

// Section marks a labeled region of extracted résumé text by rune offset.
type Section struct {
	Hint  string `json:"hint"`
	Start int    `json:"start"` // inclusive rune offset into the extracted text
}
