package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"labeled score", "A summary of the evidence.\nRelevance score: 8", 8},
		{"score out of ten", "Good evidence. 7/10", 7},
		{"trailing bare number", "The excerpt supports the claim.\n9", 9},
		{"not applicable", "Not applicable", 0},
		{"n/a last line", "Some text\nN/A", 0},
		{"out of 100 rescaled", "Relevance score: 80", 8},
		{"short unparseable", "No.", 0},
		{"long unparseable", "This is a long summary without any score attached to it, " +
			"going on at considerable length about the topic at hand without ever " +
			"giving a number for relevance.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractScore(tt.text))
		})
	}
}

func TestStripScoreLine(t *testing.T) {
	// Given: a summary with a trailing score line
	text := "Whales sing in low frequencies.\nRelevance score: 9"

	// When/Then: the score line is removed, the summary kept
	assert.Equal(t, "Whales sing in low frequencies.", StripScoreLine(text))

	// And: text without a score line is untouched
	assert.Equal(t, "Just a summary.", StripScoreLine("Just a summary."))
}

func TestNameInText_WholeTokenOnly(t *testing.T) {
	// Given: an answer citing the suffixed key
	text := "The finding holds (Smith2020a pages 3-4) in every trial."

	// Then: the shorter key does not match inside the longer one
	assert.True(t, NameInText("Smith2020a pages 3-4", text))
	assert.False(t, NameInText("Smith2020 pages 3-4", text))
	assert.False(t, NameInText("Smith2020", text))

	// And: the plain key matches when cited on its own
	assert.True(t, NameInText("Smith2020", "As shown by (Smith2020)."))
}

func TestPrompts_FillPlaceholders(t *testing.T) {
	// When: I render each prompt
	summary := SummaryPrompt("why?", "Doc2020 chunk 1: Doe, J. 2020.", "excerpt text", "about 100 words")
	qa := QAPrompt("why?", "context block", "about 200 words")
	cite := CitationPrompt("leading text")

	// Then: no placeholder survives rendering
	for _, p := range []string{summary, qa, cite} {
		assert.NotContains(t, p, "{")
	}
	assert.Contains(t, summary, "excerpt text")
	assert.Contains(t, summary, "about 100 words")
	assert.Contains(t, qa, ExampleCitation)
	assert.Contains(t, cite, "leading text")
}
