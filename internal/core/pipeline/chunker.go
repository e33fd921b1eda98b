package pipeline

import (
	"strings"
	"unicode"

	"github.com/pendocareer/ragpipeline/internal/core"
)

// boundaryLookback is how far back from the target cut point Split searches
// for a whitespace boundary before giving up and cutting hard.
const boundaryLookback = 50

// Split cuts text into overlapping windows of at most size runes. Boundaries
// prefer whitespace within the lookback window; otherwise the cut is hard.
// The same (text, size, overlap) always yields the same sequence.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, core.Errf(core.KindInvalidConfiguration, "chunk size %d must be positive", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, core.Errf(core.KindInvalidConfiguration, "overlap %d must be in [0, size %d)", overlap, size)
	}

	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end < len(runes) {
			if cut := lastSpaceWithin(runes, start, end); cut > start {
				end = cut
			}
		} else {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Advance by the configured stride regardless of where the boundary
		// landed; the stride is what makes the sequence deterministic.
		next := start + size - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks, nil
}

// lastSpaceWithin returns the index of the last whitespace rune in
// [end-boundaryLookback, end), or -1 when none exists there.
func lastSpaceWithin(runes []rune, start, end int) int {
	low := end - boundaryLookback
	if low < start {
		low = start
	}
	for i := end - 1; i >= low; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// sectionedChunk pairs a chunk with the résumé section it was cut from.
type sectionedChunk struct {
	Text string
	Hint string
}

// splitSections chunks each labeled region separately so every chunk carries
// its section hint, while the caller assigns one document-global contiguous
// sequence index. Text before the first section gets no hint.
func splitSections(text string, sections []core.Section, size, overlap int) ([]sectionedChunk, error) {
	if len(sections) == 0 {
		plain, err := Split(text, size, overlap)
		if err != nil {
			return nil, err
		}
		out := make([]sectionedChunk, 0, len(plain))
		for _, c := range plain {
			out = append(out, sectionedChunk{Text: c})
		}
		return out, nil
	}

	runes := []rune(text)
	type region struct {
		hint       string
		start, end int
	}
	var regions []region
	if sections[0].Start > 0 {
		regions = append(regions, region{start: 0, end: clampOffset(sections[0].Start, len(runes))})
	}
	for i, sec := range sections {
		end := len(runes)
		if i+1 < len(sections) {
			end = clampOffset(sections[i+1].Start, len(runes))
		}
		regions = append(regions, region{hint: sec.Hint, start: clampOffset(sec.Start, len(runes)), end: end})
	}

	var out []sectionedChunk
	for _, reg := range regions {
		if reg.start >= reg.end {
			continue
		}
		parts, err := Split(string(runes[reg.start:reg.end]), size, overlap)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			out = append(out, sectionedChunk{Text: p, Hint: reg.hint})
		}
	}
	return out, nil
}

func clampOffset(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
