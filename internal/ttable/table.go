// Package ttable holds the probability tables produced by alignment training:
// the lexical translation table, the distortion table and the fertility table,
// together with the numeric helpers that keep every row a proper distribution.
//
// Tables are built and mutated by the trainer, then frozen. A frozen table is
// safe for concurrent reads from any number of goroutines.
package ttable

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// Null is the synthetic token standing for "aligned to no word".
	Null = "NULL"

	// Epsilon is the floor applied to every stored probability.
	Epsilon = 1e-12

	// Tolerance is the accepted deviation of a row sum from 1.
	Tolerance = 1e-6
)

// ErrFrozen is returned by mutations on a frozen table.
var ErrFrozen = errors.New("table is frozen")

// Candidate is one target token with its probability.
type Candidate struct {
	Target      string  `json:"target"`
	Probability float64 `json:"probability"`
}

type row struct {
	targets []string
	probs   map[string]float64
}

// Table maps a source token to a probability distribution over target tokens.
// Sources and targets keep their first-seen insertion order, which is what
// breaks ties in Best and TopK.
type Table struct {
	sources []string
	rows    map[string]*row
	frozen  bool
}

// New returns an empty, mutable table.
func New() *Table {
	return &Table{rows: make(map[string]*row)}
}

// Set stores p for the (source, target) entry, appending either token to the
// insertion order when first seen. p is floored at Epsilon.
func (t *Table) Set(source, target string, p float64) error {
	if t.frozen {
		return ErrFrozen
	}
	r, ok := t.rows[source]
	if !ok {
		r = &row{probs: make(map[string]float64)}
		t.rows[source] = r
		t.sources = append(t.sources, source)
	}
	if _, seen := r.probs[target]; !seen {
		r.targets = append(r.targets, target)
	}
	r.probs[target] = floor(p)
	return nil
}

// Normalize rescales every row to sum to 1. It reports how many rows had a
// degenerate (zero or non-finite) total and were reset to uniform.
func (t *Table) Normalize() (int, error) {
	if t.frozen {
		return 0, ErrFrozen
	}
	repaired := 0
	vals := make([]float64, 0, 16)
	for _, src := range t.sources {
		r := t.rows[src]
		vals = vals[:0]
		for _, tgt := range r.targets {
			vals = append(vals, r.probs[tgt])
		}
		if NormalizeRow(vals) {
			repaired++
		}
		for i, tgt := range r.targets {
			r.probs[tgt] = vals[i]
		}
	}
	return repaired, nil
}

// Freeze makes the table read-only.
func (t *Table) Freeze() { t.frozen = true }

// Frozen reports whether Freeze has been called.
func (t *Table) Frozen() bool { return t.frozen }

// Len returns the number of source tokens.
func (t *Table) Len() int { return len(t.sources) }

// Entries returns the total number of (source, target) entries.
func (t *Table) Entries() int {
	n := 0
	for _, r := range t.rows {
		n += len(r.targets)
	}
	return n
}

// Sources returns the source tokens in insertion order.
func (t *Table) Sources() []string {
	out := make([]string, len(t.sources))
	copy(out, t.sources)
	return out
}

// Has reports whether source has a row.
func (t *Table) Has(source string) bool {
	_, ok := t.rows[source]
	return ok
}

// DistributionFor returns a copy of the distribution of source, or nil when
// source is unknown.
func (t *Table) DistributionFor(source string) map[string]float64 {
	r, ok := t.rows[source]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(r.probs))
	for k, v := range r.probs {
		out[k] = v
	}
	return out
}

// Candidates returns the row of source in insertion order.
func (t *Table) Candidates(source string) []Candidate {
	r, ok := t.rows[source]
	if !ok {
		return nil
	}
	out := make([]Candidate, 0, len(r.targets))
	for _, tgt := range r.targets {
		out = append(out, Candidate{Target: tgt, Probability: r.probs[tgt]})
	}
	return out
}

// Best returns the most probable target of source. With content set, the
// NULL token is never returned. Ties go to the first-seen target.
func (t *Table) Best(source string, content bool) (Candidate, bool) {
	r, ok := t.rows[source]
	if !ok {
		return Candidate{}, false
	}
	var best Candidate
	found := false
	for _, tgt := range r.targets {
		if content && tgt == Null {
			continue
		}
		p := r.probs[tgt]
		if !found || p > best.Probability {
			best = Candidate{Target: tgt, Probability: p}
			found = true
		}
	}
	return best, found
}

// TopK returns up to k candidates of source ordered by descending probability.
// keep, when non-nil, filters candidates before ranking. Equal probabilities
// keep insertion order.
func (t *Table) TopK(source string, k int, keep func(Candidate) bool) []Candidate {
	all := t.Candidates(source)
	out := all[:0]
	for _, c := range all {
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// CheckRows verifies that every row sums to 1 within Tolerance.
func (t *Table) CheckRows() error {
	for _, src := range t.sources {
		r := t.rows[src]
		sum := 0.0
		for _, p := range r.probs {
			sum += p
		}
		if math.Abs(sum-1) > Tolerance {
			return fmt.Errorf("row %q sums to %g", src, sum)
		}
	}
	return nil
}

// NormalizeRow rescales vals in place to sum to 1, flooring each value at
// Epsilon. A row whose total is zero or not finite becomes uniform and the
// function reports true.
func NormalizeRow(vals []float64) bool {
	if len(vals) == 0 {
		return false
	}
	sum := 0.0
	for _, v := range vals {
		if v > 0 && !math.IsInf(v, 0) {
			sum += v
		}
	}
	repaired := false
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		u := 1 / float64(len(vals))
		for i := range vals {
			vals[i] = u
		}
		repaired = true
	} else {
		for i, v := range vals {
			if v > 0 && !math.IsInf(v, 0) {
				vals[i] = v / sum
			} else {
				vals[i] = 0
			}
		}
	}

	sum = 0
	for i, v := range vals {
		vals[i] = floor(v)
		sum += vals[i]
	}
	for i := range vals {
		vals[i] /= sum
	}
	return repaired
}

func floor(p float64) float64 {
	if math.IsNaN(p) || p < Epsilon {
		return Epsilon
	}
	return p
}
