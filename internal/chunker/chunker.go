// Package chunker splits free text into sentences so that a document can be
// translated one sentence at a time.
package chunker

import (
	"strings"
	"unicode"
)

// Sentences splits text at line breaks and at sentence-ending punctuation
// (. ! ? …) followed by whitespace. Blank pieces are dropped and each
// sentence is trimmed.
func Sentences(text string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		out = append(out, splitLine(line)...)
	}
	return out
}

// Paragraphs splits text at blank lines.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitLine(line string) []string {
	runes := []rune(line)
	var out []string
	start := 0
	for i, r := range runes {
		if !isTerminal(r) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
