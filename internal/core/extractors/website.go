package extractors

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// mainContentSelectors are tried in order before falling back to <body>.
var mainContentSelectors = []string{"main", "article", "#content", ".content", "#main", ".main"}

// WebsiteExtractor fetches a URL within a bounded time, strips chrome markup
// and scripts, and returns the page's readable text truncated to maxLength.
type WebsiteExtractor struct {
	client    *http.Client
	maxLength int
}

func NewWebsiteExtractor(timeout time.Duration, maxLength int) *WebsiteExtractor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebsiteExtractor{
		client:    &http.Client{Timeout: timeout},
		maxLength: maxLength,
	}
}

var _ core.Extractor = (*WebsiteExtractor)(nil)

func (e *WebsiteExtractor) Extract(ctx context.Context, in core.ExtractorInput) (string, map[string]string, error) {
	if in.URL == "" {
		return "", nil, core.Errf(core.KindFetchFailed, "no URL provided")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return "", nil, core.WrapErr(core.KindFetchFailed, err, "build request")
	}
	req.Header.Set("User-Agent", "ragpipeline/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil, core.WrapErr(core.KindFetchFailed, err, "fetch "+in.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, core.Errf(core.KindFetchFailed, "fetch %s: %s", in.URL, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextual(contentType) {
		return "", nil, core.Errf(core.KindUnsupportedContentType, "unsupported content type %q for %s", contentType, in.URL)
	}

	meta := map[string]string{}
	if u, err := url.Parse(in.URL); err == nil {
		meta[core.MetaDomain] = strings.TrimPrefix(u.Hostname(), "www.")
	}

	if strings.Contains(contentType, "text/plain") {
		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(e.maxLength)+1))
		if err != nil {
			return "", nil, core.WrapErr(core.KindFetchFailed, err, "read body")
		}
		return e.truncate(normalizeText(string(body))), meta, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", nil, core.WrapErr(core.KindFetchFailed, err, "parse html")
	}

	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		meta[core.MetaTitle] = t
	}
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(d) != "" {
		meta[core.MetaDescription] = strings.TrimSpace(d)
	} else if d, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		meta[core.MetaDescription] = strings.TrimSpace(d)
	}

	doc.Find("script, style, noscript, iframe, header, footer, nav").Remove()

	var text string
	for _, sel := range mainContentSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			text = node.Text()
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	return e.truncate(collapseWhitespace(text)), meta, nil
}

func (e *WebsiteExtractor) truncate(s string) string {
	if e.maxLength <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= e.maxLength {
		return s
	}
	return string(runes[:e.maxLength])
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "text/plain")
}

var wsRun = regexp.MustCompile(`[ \t]+`)

func collapseWhitespace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(wsRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

