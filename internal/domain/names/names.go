// Package names owns every rule about player and tournament names: the single
// normalization used for comparisons, display capitalization, player list
// parsing, match labels and the storage key derived from a channel.
package names

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LabelSeparator joins the two player names of a match label.
const LabelSeparator = " vs "

// Normalize is the comparison form of any name or query: trimmed and lowercased.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Equal reports whether two names are the same player.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Contains reports whether the normalized query is a substring of the normalized text.
func Contains(text, query string) bool {
	return strings.Contains(Normalize(text), Normalize(query))
}

// Label builds the display label for a match between a and b.
func Label(a, b string) string {
	return a + LabelSeparator + b
}

// SplitLabel returns the two names of a match label.
func SplitLabel(label string) (string, string, bool) {
	a, b, ok := strings.Cut(label, LabelSeparator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// ParsePlayers splits a whitespace separated player list, capitalizes each
// name and drops repeated names keeping the first spelling.
func ParsePlayers(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name := SmartCapitalize(f)
		if name == "" {
			continue
		}
		key := Normalize(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// TournamentName derives the storage key for a tournament hosted in channel
// under category. Spaces become underscores so the key is file friendly.
func TournamentName(category, channel string) (string, error) {
	category = strings.TrimSpace(category)
	channel = strings.TrimSpace(channel)
	if category == "" {
		return "", ErrNoCategory
	}
	if channel == "" {
		return "", fmt.Errorf("%w: empty channel", ErrInvalidName)
	}
	name := strings.ReplaceAll(category+"_"+channel, " ", "_")
	if err := ValidateKey(name); err != nil {
		return "", err
	}
	return name, nil
}

// SeasonPrefix returns the prefix shared by every tournament of a category.
func SeasonPrefix(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", ErrNoCategory
	}
	prefix := strings.ReplaceAll(category, " ", "_") + "_"
	if err := ValidateKey(prefix); err != nil {
		return "", err
	}
	return prefix, nil
}

// ValidateKey rejects keys that cannot be used as a single path element.
func ValidateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, key)
	case strings.ContainsAny(key, `/\`), strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, key)
	case !utf8.ValidString(key):
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidName)
	}
	return nil
}

// ValidatePlayer rejects names that would make a match label ambiguous.
func ValidatePlayer(name string) error {
	sep := strings.TrimSpace(LabelSeparator)
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty player name", ErrInvalidName)
	case strings.Contains(name, LabelSeparator),
		strings.HasPrefix(name, sep+" "),
		strings.HasSuffix(name, " "+sep):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, LabelSeparator)
	}
	return nil
}

// SmartCapitalize capitalizes every word of s. Hyphenated words are
// capitalized per segment and punctuation is kept as separate tokens,
// so "dark-magician girl,x" becomes "Dark-Magician Girl, X".
func SmartCapitalize(s string) string {
	tokens := tokenize(s)
	var b strings.Builder
	for i, tok := range tokens {
		if isWordRune(firstRune(tok)) {
			b.WriteString(capitalizeSegments(tok))
		} else {
			b.WriteString(tok)
		}
		if i < len(tokens)-1 && !closesGroup(tokens[i+1]) {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenize yields runs of word characters (letters, digits, underscore,
// apostrophe and hyphen) and single punctuation characters. Whitespace is dropped.
func tokenize(s string) []string {
	var tokens []string
	start := -1
	for i, r := range s {
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		default:
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}
			if !unicode.IsSpace(r) {
				tokens = append(tokens, string(r))
			}
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || r == '\'' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func closesGroup(tok string) bool {
	switch tok {
	case ",", ".", ":", ";", ")", "]", "}":
		return true
	}
	return false
}

func capitalizeSegments(word string) string {
	if !strings.Contains(word, "-") {
		return capitalize(word)
	}
	parts := strings.Split(word, "-")
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, "-")
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(word string) string {
	if word == "" {
		return word
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToTitle(r)) + strings.ToLower(word[size:])
}
