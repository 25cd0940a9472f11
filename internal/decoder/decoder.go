// Package decoder turns a tokenized sentence into a translation using a
// frozen translation table and one of several selection strategies.
package decoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/wordalign/internal/quality"
	"github.com/valpere/wordalign/internal/ttable"
)

// NoTranslation is returned as the text of a translation that produced no
// tokens at all.
const NoTranslation = "translation unavailable"

var (
	// ErrModelNotLoaded is returned when no table is available for the
	// requested direction.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrUnsupportedStrategy is returned for an unknown strategy name.
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
)

// Strategy selects how a target token is picked for each source token.
type Strategy string

const (
	// WordByWord picks the best candidate that passes the quality filter and
	// marks untranslated tokens as "[token]".
	WordByWord Strategy = "word_by_word"
	// Probabilistic looks at the top-k candidates and keeps the best one if
	// it clears the confidence threshold, else the source token.
	Probabilistic Strategy = "probabilistic"
	// Conservative is WordByWord with a higher probability floor, keeping
	// the source token unmarked when nothing qualifies.
	Conservative Strategy = "conservative"
)

// Strategies lists the supported strategies.
var Strategies = []Strategy{WordByWord, Probabilistic, Conservative}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	name := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies {
		if st == name {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use word_by_word, probabilistic or conservative)", ErrUnsupportedStrategy, s)
}

// Config holds the decoding parameters.
type Config struct {
	// Filter is the quality filter of WordByWord. Conservative uses it with
	// ConservativeMinProbability as the floor.
	Filter                     quality.Config `mapstructure:"filter"`
	TopK                       int            `mapstructure:"top_k"`
	Threshold                  float64        `mapstructure:"threshold"`
	ConservativeMinProbability float64        `mapstructure:"conservative_min_probability"`
}

func DefaultConfig() Config {
	return Config{
		Filter:                     quality.DefaultConfig(),
		TopK:                       3,
		Threshold:                  0.01,
		ConservativeMinProbability: 0.05,
	}
}

// Token is the decoding of one source token.
type Token struct {
	Source      string  `json:"source"`
	Output      string  `json:"output"`
	Probability float64 `json:"probability,omitempty"`
	// Fallback is set when no candidate was accepted and Output was derived
	// from the source token.
	Fallback bool `json:"fallback,omitempty"`
}

// Result is a decoded sentence.
type Result struct {
	Text         string  `json:"text"`
	Tokens       []Token `json:"tokens"`
	UsedFallback bool    `json:"used_fallback"`
}

// Decode translates tokens with table. A nil table yields ErrModelNotLoaded.
// Unknown words never fail; they fall back per strategy.
func Decode(table *ttable.Table, tokens []string, strategy Strategy, cfg Config) (Result, error) {
	if table == nil {
		return Result{}, ErrModelNotLoaded
	}

	var pick func(string) Token
	switch strategy {
	case WordByWord:
		pick = func(tok string) Token {
			return filtered(table, tok, cfg.Filter, "["+tok+"]")
		}
	case Conservative:
		strict := cfg.Filter.WithMinProbability(cfg.ConservativeMinProbability)
		pick = func(tok string) Token {
			return filtered(table, tok, strict, tok)
		}
	case Probabilistic:
		pick = func(tok string) Token {
			return topK(table, tok, cfg.TopK, cfg.Threshold)
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, strategy)
	}

	res := Result{Tokens: make([]Token, 0, len(tokens))}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		t := pick(tok)
		res.Tokens = append(res.Tokens, t)
		res.UsedFallback = res.UsedFallback || t.Fallback
		if t.Output != "" {
			out = append(out, t.Output)
		}
	}

	res.Text = strings.Join(out, " ")
	if res.Text == "" {
		res.Text = NoTranslation
	}
	return res, nil
}

// filtered returns the most probable candidate passing filter. The winner
// must also lie strictly above the filter's floor; otherwise fallback is
// emitted.
func filtered(table *ttable.Table, tok string, filter quality.Config, fallback string) Token {
	var best ttable.Candidate
	found := false
	for _, c := range table.Candidates(tok) {
		if filter.Check(tok, c.Target, c.Probability) != quality.OK {
			continue
		}
		if !found || c.Probability > best.Probability {
			best, found = c, true
		}
	}

	if found && best.Probability > filter.MinProbability {
		return Token{Source: tok, Output: best.Target, Probability: best.Probability}
	}
	return Token{Source: tok, Output: fallback, Fallback: true}
}

func topK(table *ttable.Table, tok string, k int, threshold float64) Token {
	cands := table.TopK(tok, k, func(c ttable.Candidate) bool {
		return !quality.IsNullLiteral(c.Target) && c.Probability > 0
	})
	if len(cands) > 0 {
		best := cands[0]
		if best.Probability > threshold && !quality.IsNullLiteral(best.Target) {
			return Token{Source: tok, Output: best.Target, Probability: best.Probability}
		}
	}
	return Token{Source: tok, Output: tok, Fallback: true}
}
