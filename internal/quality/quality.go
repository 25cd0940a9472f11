// Package quality implements the heuristic guard applied to translation
// candidates before they are emitted or reported. EM-trained tables built
// from noisy corpora pick up spurious high-probability associations with
// rare junk tokens; the filter catches the common shapes of that noise.
package quality

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reason explains why a candidate was rejected. OK means it passed.
type Reason int

const (
	OK Reason = iota
	Empty
	NullLiteral
	LowProbability
	TooLong
	DeniedSymbol
	DigitMismatch
)

func (r Reason) String() string {
	switch r {
	case OK:
		return "ok"
	case Empty:
		return "empty"
	case NullLiteral:
		return "null literal"
	case LowProbability:
		return "low probability"
	case TooLong:
		return "too long"
	case DeniedSymbol:
		return "denied symbol"
	case DigitMismatch:
		return "digit mismatch"
	}
	return "unknown"
}

// DigitPolicy controls how digits in a candidate are treated.
type DigitPolicy int

const (
	// RejectUnexpectedDigits rejects candidates containing digits when the
	// source token contains none.
	RejectUnexpectedDigits DigitPolicy = iota
	// AllowDigits skips the digit check.
	AllowDigits
)

// Config parameterizes the filter.
type Config struct {
	MinProbability float64     `mapstructure:"min_probability"`
	MaxLengthRatio float64     `mapstructure:"max_length_ratio"`
	DeniedSymbols  string      `mapstructure:"denied_symbols"`
	DigitMismatch  DigitPolicy `mapstructure:"digit_mismatch"`
}

// DefaultConfig is the filter used by word-by-word decoding.
func DefaultConfig() Config {
	return Config{
		MinProbability: 0.01,
		MaxLengthRatio: 3.0,
		DeniedSymbols:  "•◦°※§",
		DigitMismatch:  RejectUnexpectedDigits,
	}
}

// WithMinProbability returns a copy of c with a different probability floor.
func (c Config) WithMinProbability(p float64) Config {
	c.MinProbability = p
	return c
}

// Check evaluates candidate as a translation of source with probability p.
// Checks run in a fixed order and the first failing one is reported.
func (c Config) Check(source, candidate string, p float64) Reason {
	if strings.TrimSpace(candidate) == "" {
		return Empty
	}
	if IsNullLiteral(candidate) {
		return NullLiteral
	}
	if p < c.MinProbability {
		return LowProbability
	}
	return c.CheckShape(source, candidate)
}

// CheckShape runs only the shape heuristics: length ratio, denied symbols
// and digit mismatch.
func (c Config) CheckShape(source, candidate string) Reason {
	if c.MaxLengthRatio > 0 &&
		float64(utf8.RuneCountInString(candidate)) > float64(utf8.RuneCountInString(source))*c.MaxLengthRatio {
		return TooLong
	}
	if c.DeniedSymbols != "" && strings.ContainsAny(candidate, c.DeniedSymbols) {
		return DeniedSymbol
	}
	if c.DigitMismatch == RejectUnexpectedDigits && hasDigit(candidate) && !hasDigit(source) {
		return DigitMismatch
	}
	return OK
}

// IsNullLiteral reports whether s spells "no word": NULL, <null>, none, or
// nothing but whitespace. Matching is case-insensitive.
func IsNullLiteral(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "<null>", "none":
		return true
	}
	return false
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
