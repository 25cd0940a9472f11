package ttable

import (
	"fmt"
	"sort"
)

// DistortionKey is the conditioning context of a distortion row.
type DistortionKey struct {
	SourcePos int `json:"source_pos"` // 1-based
	TargetLen int `json:"target_len"`
	SourceLen int `json:"source_len"`
}

// DistortionTable holds, for each context, a distribution over the target
// positions 1..TargetLen a source position aligns to.
type DistortionTable struct {
	rows   map[DistortionKey][]float64
	frozen bool
}

// NewDistortionTable returns an empty distortion table.
func NewDistortionTable() *DistortionTable {
	return &DistortionTable{rows: make(map[DistortionKey][]float64)}
}

// Set replaces the row of key. The row must hold TargetLen values; it is
// normalised on the way in.
func (d *DistortionTable) Set(key DistortionKey, row []float64) error {
	if d.frozen {
		return ErrFrozen
	}
	if len(row) != key.TargetLen {
		return fmt.Errorf("distortion row for %+v has %d values", key, len(row))
	}
	vals := make([]float64, len(row))
	copy(vals, row)
	NormalizeRow(vals)
	d.rows[key] = vals
	return nil
}

// Prob returns the probability of aligning to target position i (1-based)
// in context key. Unknown contexts fall back to uniform.
func (d *DistortionTable) Prob(i int, key DistortionKey) float64 {
	if i < 1 || i > key.TargetLen {
		return Epsilon
	}
	r, ok := d.rows[key]
	if !ok {
		return 1 / float64(key.TargetLen)
	}
	return r[i-1]
}

// Row returns a copy of the row of key.
func (d *DistortionTable) Row(key DistortionKey) ([]float64, bool) {
	r, ok := d.rows[key]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(r))
	copy(out, r)
	return out, true
}

// Keys returns all contexts ordered by source length, target length, position.
func (d *DistortionTable) Keys() []DistortionKey {
	keys := make([]DistortionKey, 0, len(d.rows))
	for k := range d.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SourceLen != b.SourceLen {
			return a.SourceLen < b.SourceLen
		}
		if a.TargetLen != b.TargetLen {
			return a.TargetLen < b.TargetLen
		}
		return a.SourcePos < b.SourcePos
	})
	return keys
}

// Len returns the number of contexts.
func (d *DistortionTable) Len() int { return len(d.rows) }

// Freeze makes the table read-only.
func (d *DistortionTable) Freeze() { d.frozen = true }

