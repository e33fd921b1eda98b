package extractors

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// resumeMimeTypes is the constrained set of document types accepted for
// résumé uploads, mapped to the docconv conversion type.
var resumeMimeTypes = map[string]string{
	"application/pdf":    "application/pdf",
	"application/msword": "application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain": "text/plain",
}

var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// sectionHeadings maps normalized heading text to the section hint attached
// to chunks cut from that region of the résumé.
var sectionHeadings = map[string]string{
	"summary":                 "summary",
	"professional summary":    "summary",
	"profile":                 "summary",
	"objective":               "summary",
	"experience":              "experience",
	"work experience":         "experience",
	"professional experience": "experience",
	"employment history":      "experience",
	"education":               "education",
	"academic background":     "education",
	"skills":                  "skills",
	"technical skills":        "skills",
	"core competencies":       "skills",
	"projects":                "projects",
	"certifications":          "certifications",
	"licenses and certifications": "certifications",
}

// ResumeExtractor handles résumé uploads (PDF, DOC, DOCX, TXT). Beyond plain
// extraction it scans for section headings so downstream chunks can carry a
// structural hint (experience, education, skills...).
type ResumeExtractor struct {
	maxBytes int
}

func NewResumeExtractor(maxBytes int) *ResumeExtractor {
	return &ResumeExtractor{maxBytes: maxBytes}
}

var _ core.Extractor = (*ResumeExtractor)(nil)

func (e *ResumeExtractor) Extract(ctx context.Context, in core.ExtractorInput) (string, map[string]string, error) {
	if len(in.Data) == 0 {
		return "", nil, core.Errf(core.KindUnreadableDocument, "empty resume input")
	}
	if e.maxBytes > 0 && len(in.Data) > e.maxBytes {
		return "", nil, core.Errf(core.KindInputTooLarge, "resume is %d bytes, limit %d", len(in.Data), e.maxBytes)
	}

	mime, ok := resolveMime(in.ContentType, in.FileName)
	if !ok {
		return "", nil, core.Errf(core.KindUnsupportedFileType, "unsupported resume type %q (file %q)", in.ContentType, in.FileName)
	}

	var text string
	if mime == "text/plain" {
		text = string(in.Data)
	} else {
		res, err := docconv.Convert(bytes.NewReader(in.Data), mime, false)
		if err != nil {
			return "", nil, core.WrapErr(core.KindUnreadableDocument, err, "resume conversion")
		}
		text = res.Body
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	text = normalizeText(text)

	meta := map[string]string{}
	if sections := DetectSections(text); len(sections) > 0 {
		if encoded, err := json.Marshal(sections); err == nil {
			meta[core.MetaSections] = string(encoded)
		}
	}
	return text, meta, nil
}

func resolveMime(contentType, fileName string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if mime, ok := resumeMimeTypes[ct]; ok {
		return mime, true
	}
	// Browsers often send application/octet-stream; fall back to the extension.
	if ct == "" || ct == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(fileName))
		if mime, ok := extensionMimeTypes[ext]; ok {
			return mime, true
		}
	}
	return "", false
}

// DetectSections scans the normalized text line by line for known résumé
// headings and returns labeled regions by rune offset. Short lines that match
// a heading (optionally ending with a colon) open a new section.
func DetectSections(text string) []core.Section {
	var sections []core.Section
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lineRunes := len([]rune(line)) + 1 // +1 for the newline
		heading := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":")))
		if len(heading) > 0 && len(heading) <= 40 {
			if hint, ok := sectionHeadings[heading]; ok {
				sections = append(sections, core.Section{Hint: hint, Start: offset})
			}
		}
		offset += lineRunes
	}
	return sections
}
