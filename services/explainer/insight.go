// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"regexp"
	"strings"
	"unicode"
)

// =============================================================================
// Knowledge Chunk Sanitization
// =============================================================================

// Knowledge chunks are untrusted, markup-bearing text. Before a sentence
// can be reused inside an explanation, structural markup is stripped and
// whitespace is normalized.
var (
	codeFencePattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	emphasisPattern   = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	listMarkerPattern = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sanitizeChunk strips code fences, inline code, emphasis, heading and
// list markers from a knowledge passage, then collapses whitespace.
func sanitizeChunk(chunk string) string {
	s := codeFencePattern.ReplaceAllString(chunk, " ")
	s = inlineCodePattern.ReplaceAllString(s, "$1")
	s = emphasisPattern.ReplaceAllString(s, "$2")
	s = headingPattern.ReplaceAllString(s, "")
	s = listMarkerPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// splitSentences splits sanitized text on terminal punctuation followed by
// whitespace and an uppercase letter. Abbreviation-heavy text may
// over-split; for explanation snippets that tradeoff is acceptable.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Look ahead past whitespace for an uppercase sentence start.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j > i+1 && j < len(runes) && unicode.IsUpper(runes[j]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = j
			i = j - 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// =============================================================================
// Level-Dependent Sentence Selection
// =============================================================================

// Keyword sets steering sentence selection per level. Beginner prefers
// explanatory connectives; interview_ready prefers complexity vocabulary.
var (
	beginnerCuePhrases = []string{"allows", "helps", "enables", "is a", "used for"}
	technicalCueWords  = []string{"complexity", "time", "space", "algorithm", "performance", "memory"}
)

// minSentenceLength is the floor (in characters) used by medium selection
// to skip title-like fragments.
const minSentenceLength = 40

// selectInsight picks the sentence of the first retrieved chunk that best
// fits the level, falling back to the first substantive sentence. Returns
// "" when nothing usable remains after sanitization.
func selectInsight(level Level, chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	cleaned := sanitizeChunk(chunks[0])
	if cleaned == "" {
		return ""
	}
	sentences := splitSentences(cleaned)
	if len(sentences) == 0 {
		return ""
	}

	var picked string
	switch level {
	case LevelBeginner:
		// Beginner prefers cue-phrase sentences but never skips past the
		// opening sentence: a short lead-in is still the gentlest entry.
		picked = firstContaining(sentences, beginnerCuePhrases)
		if picked == "" {
			picked = sentences[0]
		}
	case LevelInterviewReady:
		picked = firstContaining(sentences, technicalCueWords)
	case LevelMedium:
		picked = firstLongerThan(sentences, minSentenceLength)
	}
	if picked == "" {
		picked = firstLongerThan(sentences, minSentenceLength)
	}
	if picked == "" {
		picked = sentences[0]
	}

	return ensureTerminated(picked)
}

// firstContaining returns the first sentence containing any cue, matched
// case-insensitively, or "".
func firstContaining(sentences []string, cues []string) string {
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				return s
			}
		}
	}
	return ""
}

// firstLongerThan returns the first sentence at or above the length floor,
// or "".
func firstLongerThan(sentences []string, floor int) string {
	for _, s := range sentences {
		if len(s) >= floor {
			return s
		}
	}
	return ""
}

// ensureTerminated appends a period when the sentence lacks terminal
// punctuation.
func ensureTerminated(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}
