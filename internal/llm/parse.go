package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scoreLabelRE  = regexp.MustCompile(`(?i)score[:\s]+\(?([0-9]+)`)
	scoreSlashRE  = regexp.MustCompile(`([0-9]+)\w*/`)
	trailingNumRE = regexp.MustCompile(`([0-9]+)`)
	scoreLineRE   = regexp.MustCompile(`(?im)^\s*(relevance\s+)?score[:\s]*\(?[0-9]+\)?[^\n]*$`)
)

// ExtractScore pulls the 1-10 relevance score out of a scoring response.
// Models phrase scores inconsistently, so this tries a labeled score,
// then an "N/10" form, then a bare trailing number. "Not applicable"
// responses and responses carrying no parsable score at all score 0,
// which drops the evidence downstream.
func ExtractScore(text string) int {
	trimmed := strings.TrimSpace(text)
	lines := strings.Split(trimmed, "\n")
	lastLine := strings.ToLower(lines[len(lines)-1])
	if strings.Contains(lastLine, "n/a") || strings.Contains(strings.ToLower(trimmed), "not applicable") {
		return 0
	}

	if m := scoreLabelRE.FindStringSubmatch(trimmed); m != nil {
		return clampScore(m[1])
	}
	if m := scoreSlashRE.FindStringSubmatch(trimmed); m != nil {
		return clampScore(m[1])
	}

	tail := trimmed
	if len(tail) > 15 {
		tail = tail[len(tail)-15:]
	}
	if ms := trailingNumRE.FindAllString(tail, -1); len(ms) > 0 {
		return clampScore(ms[len(ms)-1])
	}

	return 0
}

func clampScore(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	// Out-of-100 scores show up occasionally; rescale.
	if n > 10 {
		n /= 10
	}
	return n
}

// StripScoreLine removes the trailing "Relevance score: N" line a
// scoring response carries, leaving just the summary text.
func StripScoreLine(text string) string {
	return strings.TrimSpace(scoreLineRE.ReplaceAllString(text, ""))
}

// NameInText reports whether the citation key name appears in text as a
// whole token, so Smith2020 never matches inside Smith2020a.
func NameInText(name, text string) bool {
	pattern := `\b` + regexp.QuoteMeta(strings.TrimSpace(name)) + `\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
