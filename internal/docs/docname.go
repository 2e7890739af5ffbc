package docs

import (
	"regexp"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

var (
	authorRE = regexp.MustCompile(`[A-Z][a-z]+`)
	yearRE   = regexp.MustCompile(`\d{4}`)
)

// deriveDocname builds a citation key from a citation string: the first
// capitalized word plus the first four-digit year, e.g. "Smith2020".
// The year is optional; a citation with no capitalized word at all is an
// error the caller surfaces with advice to pass a name explicitly.
func deriveDocname(citation string) (string, error) {
	author := authorRE.FindString(citation)
	if author == "" {
		return "", pqerr.Newf(pqerr.ErrCodeNameResolution,
			"could not derive a name from citation %q; pass a name explicitly", citation)
	}
	return author + yearRE.FindString(citation), nil
}

// uniqueName disambiguates base against taken names with a lowercase
// suffix: Smith2020, Smith2020a, ..., Smith2020z, Smith2020aa, ...
func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	suffix := "a"
	for taken[base+suffix] {
		suffix = nextSuffix(suffix)
	}
	return base + suffix
}

// nextSuffix increments a lowercase base-26 suffix: a..z, aa, ab, ...
func nextSuffix(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'z' {
			b[i]++
			return string(b)
		}
		b[i] = 'a'
	}
	return "a" + string(b)
}
