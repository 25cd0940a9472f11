package corpus

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// LanguageVerifier reports whether text looks like it is written in the
// language with the given ISO 639-1 code.
type LanguageVerifier interface {
	Matches(text, iso string) bool
}

// TMXOptions tunes LoadTMX.
type TMXOptions struct {
	// Limit stops reading after this many kept units; 0 reads everything.
	Limit int
	// Verifier, when set, drops units whose segments are detected as a
	// language other than the declared one.
	Verifier LanguageVerifier
}

// TMXStats summarises a TMX read.
type TMXStats struct {
	Units   int `json:"units"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

type tmxUnit struct {
	Variants []tmxVariant `xml:"tuv"`
}

type tmxVariant struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Seg   struct {
		Text string `xml:",chardata"`
	} `xml:"seg"`
}

func (v tmxVariant) lang() string {
	for _, a := range v.Attrs {
		if a.Name.Local == "lang" {
			return a.Value
		}
	}
	return ""
}

// LoadTMX streams translation units from a TMX document and returns the
// tokenized segments for the from and to languages. Units lacking either
// language, or with an empty segment on either side, are skipped.
func LoadTMX(r io.Reader, from, to string, opts TMXOptions) ([][]string, [][]string, TMXStats, error) {
	var stats TMXStats
	var source, target [][]string

	dec := xml.NewDecoder(bufio.NewReader(r))
	for {
		if opts.Limit > 0 && stats.Kept >= opts.Limit {
			break
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, stats, fmt.Errorf("%w: failed to parse TMX: %v", ErrInput, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "tu" {
			continue
		}

		var unit tmxUnit
		if err := dec.DecodeElement(&unit, &se); err != nil {
			return nil, nil, stats, fmt.Errorf("%w: failed to decode translation unit: %v", ErrInput, err)
		}
		stats.Units++

		src, srcOK := unit.segment(from)
		tgt, tgtOK := unit.segment(to)
		if !srcOK || !tgtOK {
			stats.Skipped++
			continue
		}

		if opts.Verifier != nil && (!opts.Verifier.Matches(src, baseLang(from)) || !opts.Verifier.Matches(tgt, baseLang(to))) {
			stats.Skipped++
			continue
		}

		source = append(source, Tokenize(src))
		target = append(target, Tokenize(tgt))
		stats.Kept++
	}

	return source, target, stats, nil
}

func (u tmxUnit) segment(lang string) (string, bool) {
	for _, v := range u.Variants {
		if !langMatches(v.lang(), lang) {
			continue
		}
		text := strings.TrimSpace(v.Seg.Text)
		return text, text != ""
	}
	return "", false
}

// langMatches compares language tags case-insensitively, letting a bare
// code match any of its regional variants ("fr" matches "fr-CA").
func langMatches(tag, want string) bool {
	tag, want = strings.ToLower(tag), strings.ToLower(want)
	if tag == want {
		return true
	}
	return strings.HasPrefix(tag, want+"-") || strings.HasPrefix(tag, want+"_")
}

func baseLang(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return tag[:i]
	}
	return tag
}

// LoadParallel reads two line-aligned plain-text files, one sentence per
// line, and tokenizes them. Differing line counts are rejected.
func LoadParallel(source, target io.Reader) ([][]string, [][]string, error) {
	srcLines, err := readLines(source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read source: %w", err)
	}
	tgtLines, err := readLines(target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read target: %w", err)
	}
	if len(srcLines) != len(tgtLines) {
		return nil, nil, fmt.Errorf("%w: %d source lines but %d target lines",
			ErrInput, len(srcLines), len(tgtLines))
	}
	return TokenizeAll(srcLines), TokenizeAll(tgtLines), nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
