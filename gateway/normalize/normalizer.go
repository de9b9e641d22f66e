// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package normalize reformats raw assistant output for display. It is a
// best-effort heuristic formatter over an ordered rule pipeline, not a
// markdown parser: it tolerates malformed or partial markup and never fails.
package normalize

import (
	"regexp"
	"strings"
)

// DefaultMaxTokens is the hard word-count cap applied to assistant output
const DefaultMaxTokens = 300

// DefaultAbbreviations are tokens whose trailing period must not be treated
// as a sentence boundary during re-flow
var DefaultAbbreviations = []string{
	"Dr.", "Dra.", "Sr.", "Sra.", "Srta.", "Prof.", "Profa.", "etc.", "ex.", "aprox.",
}

// Config controls the normalization pipeline
type Config struct {
	// MaxTokens is the word-count cap (DefaultMaxTokens when zero)
	MaxTokens int `yaml:"max_tokens"`

	// Abbreviations suppress paragraph breaks after their trailing period
	Abbreviations []string `yaml:"abbreviations"`
}

// Normalizer applies the ordered cleanup pipeline. Safe for concurrent use.
type Normalizer struct {
	maxTokens     int
	abbreviations map[string]bool
}

var (
	citationMarkerRe = regexp.MustCompile(`【[^】]*】`)
	citationTagRe    = regexp.MustCompile(`\[\d+(?::\d+)?\]`)
	handleLinkRe     = regexp.MustCompile(`(@[A-Za-z0-9_.]+)\s*\(\s*https?://[^)\s]*\s*\)`)
	bareURLRe        = regexp.MustCompile(`https?://\S+`)
	boldRe           = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	underlineBoldRe  = regexp.MustCompile(`__([^_]*)__`)
	italicStarRe     = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe    = regexp.MustCompile(`_([^_\n]+)_`)
	numberedItemRe   = regexp.MustCompile(`(^|\s)\d+[.)]\s+`)
	sentenceBreakRe  = regexp.MustCompile(`(\S+[.!?])\s+`)
	emptyBulletRe    = regexp.MustCompile(`(?m)^-\s*$\n?`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

// New creates a Normalizer from the given config
func New(cfg Config) *Normalizer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	abbrevs := cfg.Abbreviations
	if abbrevs == nil {
		abbrevs = DefaultAbbreviations
	}
	set := make(map[string]bool, len(abbrevs))
	for _, a := range abbrevs {
		set[strings.ToLower(a)] = true
	}

	return &Normalizer{maxTokens: maxTokens, abbreviations: set}
}

// Normalize runs the full pipeline: strip citations, strip links, strip
// emphasis, truncate to the token cap, re-flow into paragraphs and bullets,
// collapse empty bullets. Order matters: later rules assume earlier ones ran.
func (n *Normalizer) Normalize(raw string) string {
	text := stripCitations(raw)
	text = stripLinks(text)
	text = stripEmphasis(text)
	text = truncateTokens(text, n.maxTokens)
	text = n.reflow(text)
	text = collapseEmptyBullets(text)
	return strings.TrimSpace(text)
}

// stripCitations removes bracketed citation artifacts like 【4:0†source】 and
// numeric tags like [12]
func stripCitations(text string) string {
	text = citationMarkerRe.ReplaceAllString(text, "")
	return citationTagRe.ReplaceAllString(text, "")
}

// stripLinks removes bare URLs. A parenthesized URL directly following an
// @handle is removed while the handle is kept.
func stripLinks(text string) string {
	text = handleLinkRe.ReplaceAllString(text, "$1")
	return bareURLRe.ReplaceAllString(text, "")
}

// stripEmphasis drops markdown bold/italic delimiters, keeping inner text
func stripEmphasis(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = underlineBoldRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = italicUnderRe.ReplaceAllString(text, "$1")
	// Unpaired leftovers
	return strings.ReplaceAll(text, "**", "")
}

// truncateTokens keeps the first max whitespace-delimited tokens. This also
// collapses all whitespace to single spaces, which the re-flow step relies on.
func truncateTokens(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) > max {
		fields = fields[:max]
	}
	return strings.Join(fields, " ")
}

// reflow converts numbered list markers to bullet glyphs, puts each bullet on
// its own line and inserts a paragraph break after sentence-ending
// punctuation, except when the preceding token is a known abbreviation.
func (n *Normalizer) reflow(text string) string {
	text = numberedItemRe.ReplaceAllString(text, "${1}- ")
	text = strings.ReplaceAll(text, " - ", "\n- ")

	return sentenceBreakRe.ReplaceAllStringFunc(text, func(match string) string {
		token := strings.TrimRight(match, " \n")
		if n.abbreviations[strings.ToLower(token)] {
			return match
		}
		return token + "\n\n"
	})
}

// collapseEmptyBullets drops bullet lines with no content and squeezes blank
// line runs down to a single paragraph break
func collapseEmptyBullets(text string) string {
	text = emptyBulletRe.ReplaceAllString(text, "")
	return blankRunRe.ReplaceAllString(text, "\n\n")
}
