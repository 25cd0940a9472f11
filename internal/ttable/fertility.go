package ttable

import "fmt"

// FertilityTable maps a token to a distribution over how many words it
// generates, 0..MaxFertility.
type FertilityTable struct {
	tokens []string
	rows   map[string][]float64
	frozen bool
}

// NewFertilityTable returns an empty fertility table.
func NewFertilityTable() *FertilityTable {
	return &FertilityTable{rows: make(map[string][]float64)}
}

// Set replaces the distribution of token, normalising it.
func (f *FertilityTable) Set(token string, dist []float64) error {
	if f.frozen {
		return ErrFrozen
	}
	if len(dist) == 0 {
		return fmt.Errorf("empty fertility distribution for %q", token)
	}
	if _, ok := f.rows[token]; !ok {
		f.tokens = append(f.tokens, token)
	}
	vals := make([]float64, len(dist))
	copy(vals, dist)
	NormalizeRow(vals)
	f.rows[token] = vals
	return nil
}

// Prob returns n(phi|token), or Epsilon when either is unknown.
func (f *FertilityTable) Prob(token string, phi int) float64 {
	r, ok := f.rows[token]
	if !ok || phi < 0 || phi >= len(r) {
		return Epsilon
	}
	return r[phi]
}

// Distribution returns a copy of the distribution of token.
func (f *FertilityTable) Distribution(token string) ([]float64, bool) {
	r, ok := f.rows[token]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(r))
	copy(out, r)
	return out, true
}

// Tokens returns the tokens in insertion order.
func (f *FertilityTable) Tokens() []string {
	out := make([]string, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// Len returns the number of tokens.
func (f *FertilityTable) Len() int { return len(f.tokens) }

// Freeze makes the table read-only.
func (f *FertilityTable) Freeze() { f.frozen = true }
