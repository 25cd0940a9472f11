// Package corpus holds the sentence-aligned bilingual data the trainer
// consumes, and the loaders and tokenizer that produce it.
package corpus

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInput marks malformed or mismatched corpus input.
var ErrInput = errors.New("invalid corpus input")

// SentencePair is one aligned segment. Either side may be empty.
type SentencePair struct {
	Source []string `json:"source"`
	Target []string `json:"target"`
}

// Direction names a translation direction between two language codes.
type Direction struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the direction as "fr_to_en".
func (d Direction) String() string {
	return d.From + "_to_" + d.To
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	return Direction{From: d.To, To: d.From}
}

// ParseDirection parses "fr_to_en" (also "fr-en").
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var from, to string
	if i := strings.Index(s, "_to_"); i > 0 {
		from, to = s[:i], s[i+len("_to_"):]
	} else if i := strings.Index(s, "-"); i > 0 {
		from, to = s[:i], s[i+1:]
	}
	if from == "" || to == "" || from == to {
		return Direction{}, fmt.Errorf("%w: bad direction %q", ErrInput, s)
	}
	return Direction{From: from, To: to}, nil
}

// Align pairs the i-th source sequence with the i-th target sequence.
// With reverse set the sides are swapped, producing pairs for the opposite
// direction. The two corpora must have the same number of sentences.
func Align(source, target [][]string, reverse bool) ([]SentencePair, error) {
	if len(source) != len(target) {
		return nil, fmt.Errorf("%w: %d source sentences but %d target sentences",
			ErrInput, len(source), len(target))
	}

	pairs := make([]SentencePair, len(source))
	for i := range source {
		if reverse {
			pairs[i] = SentencePair{Source: target[i], Target: source[i]}
		} else {
			pairs[i] = SentencePair{Source: source[i], Target: target[i]}
		}
	}
	return pairs, nil
}

// Vocabulary returns the distinct source and target token counts of pairs.
func Vocabulary(pairs []SentencePair) (source, target int) {
	src := make(map[string]struct{})
	tgt := make(map[string]struct{})
	for _, p := range pairs {
		for _, w := range p.Source {
			src[w] = struct{}{}
		}
		for _, w := range p.Target {
			tgt[w] = struct{}{}
		}
	}
	return len(src), len(tgt)
}
