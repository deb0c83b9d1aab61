// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// Knowledge Summarization
// =============================================================================

// Summarization limits. Chunk summaries stay short enough to scan; topic
// explanations get more room; key points stay one-line.
const (
	summarySentences = 2
	summaryMaxLen    = 250
	topicMaxLen      = 800
	keyPointMaxLen   = 150
	keyPointMinLen   = 15
	maxKeyPoints     = 6
	topicScanChunks  = 4
)

// SummarizeChunk reduces a knowledge passage to its leading sentences,
// stripped of markup and truncated at a word boundary. Returns "" when
// nothing survives sanitization.
func SummarizeChunk(chunk string) string {
	cleaned := sanitizeChunk(chunk)
	if cleaned == "" {
		return ""
	}
	sentences := splitSentences(cleaned)
	if len(sentences) == 0 {
		return ""
	}
	n := summarySentences
	if len(sentences) < n {
		n = len(sentences)
	}
	return truncateAtWord(strings.Join(sentences[:n], " "), summaryMaxLen)
}

// TopicSummary is a structured topic explanation assembled from several
// retrieved knowledge passages.
type TopicSummary struct {
	// Topic is the display name inferred from the query.
	Topic string `json:"topic"`
	// Explanation is the combined, sanitized passage text.
	Explanation string `json:"explanation"`
	// KeyPoints are up to six one-line takeaways.
	KeyPoints []string `json:"key_points"`
}

// SummarizeTopic builds a topic explanation from retrieved chunks: a
// display topic from the query, a combined sanitized explanation, and a
// short list of key points mined from list items and cue sentences.
func SummarizeTopic(query string, chunks []string) TopicSummary {
	summary := TopicSummary{Topic: inferTopic(query)}
	if len(chunks) == 0 {
		return summary
	}
	summary.Explanation = truncateAtWord(sanitizeChunk(strings.Join(chunks, "\n\n")), topicMaxLen)
	summary.KeyPoints = extractKeyPoints(chunks)
	return summary
}

// =============================================================================
// Topic Inference
// =============================================================================

// topicStopPhrases are question scaffolding stripped before the remainder
// of the query becomes the topic name. Order matters: longer phrases first
// so "what is" is removed before "is" could survive inside it.
var topicStopPhrases = []string{"teach me", "what is", "explain", "how"}

// inferTopic derives a display topic from a free-text query, falling back
// to content-keyword detection when stripping leaves nothing usable.
func inferTopic(query string) string {
	topic := strings.ToLower(query)
	for _, phrase := range topicStopPhrases {
		topic = strings.ReplaceAll(topic, phrase, "")
	}
	topic = strings.Trim(topic, " \t?.!")
	if utf8.RuneCountInString(topic) >= 3 {
		return titleCase(topic)
	}

	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "array") || strings.Contains(lower, "list"):
		return "Arrays and Lists"
	case strings.Contains(lower, "loop") || strings.Contains(lower, "iterat"):
		return "Loops"
	case strings.Contains(lower, "recurs"):
		return "Recursion"
	default:
		return "Programming Concept"
	}
}

// titleCase uppercases the first rune of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// =============================================================================
// Key Point Extraction
// =============================================================================

// keyPointCues mark sentences worth surfacing as standalone takeaways.
var keyPointCues = []string{
	"is used", "allows", "enables", "helps", "important", "essential", "provides",
}

// extractKeyPoints mines up to maxKeyPoints one-line takeaways from the
// leading chunks: list items first, then cue-keyword sentences, then plain
// leading sentences when the sources are too sparse.
func extractKeyPoints(chunks []string) []string {
	if len(chunks) > topicScanChunks {
		chunks = chunks[:topicScanChunks]
	}

	var points []string
	seen := make(map[string]bool)
	add := func(candidate string) {
		point := truncateAtWord(sanitizeChunk(candidate), keyPointMaxLen)
		if len(point) <= keyPointMinLen || seen[point] {
			return
		}
		seen[point] = true
		points = append(points, point)
	}

	for _, chunk := range chunks {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			switch {
			case listMarkerPattern.MatchString(line):
				add(line)
			case len(line) > 30 && len(line) < 300 && containsAnyFold(line, keyPointCues):
				add(line)
			}
			if len(points) >= maxKeyPoints {
				return points
			}
		}
	}

	// Sparse sources: take leading sentences instead.
	if len(points) < 3 {
		for _, chunk := range chunks {
			sentences := splitSentences(sanitizeChunk(chunk))
			for i, sent := range sentences {
				if i >= summarySentences {
					break
				}
				if len(sent) > 30 {
					add(sent)
				}
				if len(points) >= maxKeyPoints {
					return points
				}
			}
		}
	}
	return points
}

// containsAnyFold reports whether s contains any needle, case-insensitively.
func containsAnyFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// truncateAtWord shortens s to at most maxLen bytes, cutting at the last
// word boundary and marking the cut with an ellipsis.
func truncateAtWord(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := strings.LastIndex(s[:maxLen], " ")
	if cut <= 0 {
		cut = maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return strings.TrimRight(s[:cut], " ,;:") + "..."
}
