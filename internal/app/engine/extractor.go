package engine

import (
	"strings"
)

// Candidate is a potential finding extracted from a hit, not yet
// classified or scored.
type Candidate struct {
	Repository string
	FilePath   string
	HTMLURL    string
	// Matched is the trimmed line of text the candidate was built from.
	Matched string
	// RawContent is surrounding file context, truncated.
	RawContent string
}

// relevanceKeywords mark a line as worth classifying even when the
// investigated domain does not appear on it.
var relevanceKeywords = []string{
	"password", "secret", "key", "token", "api", "auth", "credential",
}

// Extractor turns provider hits into classification candidates.
type Extractor struct {
	excludedPrefixes []string
	maxPerFile       int
	rawContentLimit  int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExcludedPrefixes overrides the file path prefixes that are
// dropped during extraction.
func WithExcludedPrefixes(prefixes []string) ExtractorOption {
	return func(e *Extractor) { e.excludedPrefixes = prefixes }
}

// WithMaxPerFile overrides the candidate cap per file.
func WithMaxPerFile(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPerFile = n
		}
	}
}

// WithRawContentLimit overrides the stored raw context size.
func WithRawContentLimit(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.rawContentLimit = n
		}
	}
}

// NewExtractor creates an Extractor with the default vendored-path
// exclusions, a 5 candidate per-file cap, and 500 bytes of raw context.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		excludedPrefixes: []string{
			"vendor/", "node_modules/", "third_party/", "dist/", "build/",
		},
		maxPerFile:      5,
		rawContentLimit: 500,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the classification candidates for one hit. It returns
// ErrExcludedPath for vendored paths and ErrEmptyMatch when the hit
// carries no usable text. Both are recoverable per-candidate conditions.
func (e *Extractor) Extract(hit Hit, domain string) ([]Candidate, error) {
	path := strings.TrimPrefix(hit.Path, "/")
	for _, prefix := range e.excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil, ErrExcludedPath
		}
	}

	lines := e.matchableLines(hit)
	if len(lines) == 0 {
		return nil, ErrEmptyMatch
	}

	raw := hit.Content
	if len(raw) > e.rawContentLimit {
		raw = raw[:e.rawContentLimit]
	}

	domainLower := strings.ToLower(domain)
	var candidates []Candidate
	for _, line := range lines {
		if len(candidates) >= e.maxPerFile {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isRelevant(strings.ToLower(line), domainLower) {
			continue
		}
		candidates = append(candidates, Candidate{
			Repository: hit.Repository,
			FilePath:   hit.Path,
			HTMLURL:    hit.HTMLURL,
			Matched:    line,
			RawContent: raw,
		})
	}

	// A file that mentions the domain but yields no relevant line still
	// counts once, as a bare domain reference.
	if len(candidates) == 0 {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || !strings.Contains(strings.ToLower(line), domainLower) {
				continue
			}
			candidates = append(candidates, Candidate{
				Repository: hit.Repository,
				FilePath:   hit.Path,
				HTMLURL:    hit.HTMLURL,
				Matched:    line,
				RawContent: raw,
			})
			break
		}
	}

	if len(candidates) == 0 {
		return nil, ErrEmptyMatch
	}
	return candidates, nil
}

// matchableLines prefers full file content over text-match fragments.
func (e *Extractor) matchableLines(hit Hit) []string {
	if hit.Content != "" {
		return strings.Split(hit.Content, "\n")
	}
	var lines []string
	for _, fragment := range hit.Fragments {
		lines = append(lines, strings.Split(fragment, "\n")...)
	}
	return lines
}

func isRelevant(lineLower, domainLower string) bool {
	if domainLower != "" && strings.Contains(lineLower, domainLower) {
		return true
	}
	for _, keyword := range relevanceKeywords {
		if strings.Contains(lineLower, keyword) {
			return true
		}
	}
	return false
}
