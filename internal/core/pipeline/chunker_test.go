package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendocareer/ragpipeline/internal/core"
)

func TestSplitRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.size, tc.overlap)
			require.Error(t, err)
			assert.Equal(t, core.KindInvalidConfiguration, core.KindOf(err))
		})
	}
}

func TestSplitEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		chunks, err := Split(text, 400, 50)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks, err := Split("hello world", 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplitChunkSizeBound(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	chunks, err := Split(text, 400, 50)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 400, "chunk %d exceeds size", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60)
	first, err := Split(text, 400, 50)
	require.NoError(t, err)
	second, err := Split(text, 400, 50)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitPrefersWordBoundary(t *testing.T) {
	// Words are short, so a whitespace boundary always exists within the
	// lookback window and no word should be cut in half.
	words := strings.Fields(strings.Repeat("alpha beta gamma delta epsilon ", 100))
	text := strings.Join(words, " ")
	chunks, err := Split(text, 100, 20)
	require.NoError(t, err)
	vocab := map[string]bool{"alpha": true, "beta": true, "gamma": true, "delta": true, "epsilon": true}
	for _, c := range chunks {
		for _, w := range strings.Fields(c) {
			assert.True(t, vocab[w], "word %q was split mid-token", w)
		}
	}
}

func TestSplitHardCutWithoutBoundary(t *testing.T) {
	// One unbroken run of letters: no whitespace anywhere, so every chunk is
	// a hard cut at exactly the window size.
	text := strings.Repeat("x", 1000)
	chunks, err := Split(text, 400, 50)
	require.NoError(t, err)
	// Stride is size-overlap = 350, so 1000 runes yield ceil(1000/350) = 3.
	require.Len(t, chunks, 3)
	assert.Equal(t, 400, utf8.RuneCountInString(chunks[0]))
}

func TestSplitAdvancesOnFullOverlapStride(t *testing.T) {
	// size-overlap = 1 would loop forever without the minimum advance rule.
	chunks, err := Split(strings.Repeat("ab ", 50), 10, 9)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestSplitRuneSafety(t *testing.T) {
	text := strings.Repeat("héllo wörld ünïcode ", 100)
	chunks, err := Split(text, 50, 10)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestSplitSectionsCarriesHints(t *testing.T) {
	text := "John Doe contact info here. " +
		"Experience\nBuilt data pipelines at Acme for five years. " +
		"Education\nBSc Computer Science, State University."
	expIdx := strings.Index(text, "Experience")
	eduIdx := strings.Index(text, "Education")
	sections := []core.Section{
		{Hint: "experience", Start: utf8.RuneCountInString(text[:expIdx])},
		{Hint: "education", Start: utf8.RuneCountInString(text[:eduIdx])},
	}

	chunks, err := splitSections(text, sections, 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Empty(t, chunks[0].Hint)
	assert.Contains(t, chunks[0].Text, "John Doe")
	assert.Equal(t, "experience", chunks[1].Hint)
	assert.Contains(t, chunks[1].Text, "Acme")
	assert.Equal(t, "education", chunks[2].Hint)
	assert.Contains(t, chunks[2].Text, "State University")
}

func TestSplitSectionsNoSectionsFallsBack(t *testing.T) {
	chunks, err := splitSections("plain text without sections", nil, 400, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Hint)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("ab"))
	assert.Equal(t, 3, approxTokens("twelve chars"))
}
