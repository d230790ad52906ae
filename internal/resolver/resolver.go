// Package resolver normalizes raw model output into a canonical entity name.
//
// Normalize is a pure, deterministic, total function: every input maps to a
// cleaned, title-cased string of at most 64 characters. It is the keying
// function for entity deduplication, so two raw answers that differ only in
// quoting, casing, or trailing explanation resolve to the same entity.
package resolver

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// MaxEntityLength is the canonical name length cap.
const MaxEntityLength = 64

var (
	// Citation artifacts some models leave in web-search answers,
	// e.g. "citeturn0search0" or "cite3".
	citationRe = regexp.MustCompile(`(?i)cite(?:turn\d+)?(?:news\d+)?(?:turn\d+)?(?:search)?\d*`)

	leadingQuotesRe  = regexp.MustCompile("^[\"'`]+")
	trailingQuotesRe = regexp.MustCompile("[\"'`]+$")
	leadingStarsRe   = regexp.MustCompile(`^\*+`)
	trailingStarsRe  = regexp.MustCompile(`\*+$`)

	// Explanatory tails: "Entity — because ...", "Entity - it is ...",
	// "Entity, because ...", "Entity: reason". A bare hyphen inside a name
	// ("gpt-5", "Spider-Man") is not a separator; only spaced hyphens and
	// en/em dashes are.
	dashTailRe    = regexp.MustCompile(`^([^—–]+?)(?:—|–|\s-\s)`)
	becauseTailRe = regexp.MustCompile(`(?i)^([^,]+?)(?:,?\s+because|,?\s+since|,?\s+as it)`)
	colonTailRe   = regexp.MustCompile(`^([^:]+):`)

	trailingPunctRe = regexp.MustCompile(`[.!?]+$`)
)

// Normalize maps raw model output to a canonical entity name.
func Normalize(raw string) string {
	entity := strings.TrimSpace(raw)

	// Structured-output stages sometimes return the JSON envelope itself.
	var envelope struct {
		Entity string `json:"entity"`
	}
	if err := json.Unmarshal([]byte(entity), &envelope); err == nil && envelope.Entity != "" {
		entity = strings.TrimSpace(envelope.Entity)
	}

	entity = citationRe.ReplaceAllString(entity, "")

	entity = leadingQuotesRe.ReplaceAllString(entity, "")
	entity = trailingQuotesRe.ReplaceAllString(entity, "")
	entity = leadingStarsRe.ReplaceAllString(entity, "")
	entity = trailingStarsRe.ReplaceAllString(entity, "")

	if m := dashTailRe.FindStringSubmatch(entity); m != nil {
		entity = strings.TrimSpace(m[1])
	}
	if m := becauseTailRe.FindStringSubmatch(entity); m != nil {
		entity = strings.TrimSpace(m[1])
	}
	if m := colonTailRe.FindStringSubmatch(entity); m != nil {
		entity = strings.TrimSpace(m[1])
	}

	entity = leadingQuotesRe.ReplaceAllString(entity, "")
	entity = trailingQuotesRe.ReplaceAllString(entity, "")
	entity = trailingPunctRe.ReplaceAllString(entity, "")
	entity = strings.TrimSpace(entity)

	if runes := []rune(entity); len(runes) > MaxEntityLength {
		entity = strings.TrimSpace(string(runes[:MaxEntityLength]))
	}

	return titleCase(entity)
}

// titleCase lowercases the whole string and capitalizes the first letter of
// each space-separated word.
func titleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, word := range words {
		runes := []rune(word)
		if len(runes) == 0 {
			continue
		}
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
