package align

// Alignment maps each source position (0-based index) to a target
// position: 0 is NULL, 1..l are target tokens.
type Alignment []int

// Clone returns an independent copy.
func (a Alignment) Clone() Alignment {
	out := make(Alignment, len(a))
	copy(out, a)
	return out
}

// Scorer evaluates alignments of one sentence pair.
type Scorer interface {
	SourceLen() int
	TargetLen() int
	// LogProb returns the log probability of a, or -Inf when a is impossible.
	LogProb(a Alignment) float64
}

// Searcher finds a high-probability alignment starting from seed and
// returns it with a sample of alignments over which expected counts are
// collected. The sample always contains best.
type Searcher interface {
	Search(s Scorer, seed Alignment) (best Alignment, sample []Alignment)
}

// HillClimb greedily applies the best move or swap until no neighbour
// improves the score, or MaxSteps is reached. The sample is the best
// alignment and its full neighbourhood.
type HillClimb struct {
	MaxSteps int
}

func (h HillClimb) Search(s Scorer, seed Alignment) (Alignment, []Alignment) {
	cur := seed.Clone()
	curLP := s.LogProb(cur)

	steps := h.MaxSteps
	if steps <= 0 {
		steps = DefaultSearchSteps
	}

	for step := 0; step < steps; step++ {
		var next Alignment
		nextLP := curLP
		forNeighbours(cur, s.TargetLen(), func(n Alignment) {
			if lp := s.LogProb(n); lp > nextLP {
				next, nextLP = n.Clone(), lp
			}
		})
		if next == nil {
			break
		}
		cur, curLP = next, nextLP
	}

	sample := []Alignment{cur}
	forNeighbours(cur, s.TargetLen(), func(n Alignment) {
		sample = append(sample, n.Clone())
	})
	return cur, sample
}

// forNeighbours calls fn for every alignment one move or one swap away
// from a. The slice passed to fn is reused between calls.
func forNeighbours(a Alignment, l int, fn func(Alignment)) {
	n := a.Clone()
	for j := range a {
		orig := a[j]
		for i := 0; i <= l; i++ {
			if i == orig {
				continue
			}
			n[j] = i
			fn(n)
		}
		n[j] = orig
	}
	for j1 := range a {
		for j2 := j1 + 1; j2 < len(a); j2++ {
			if a[j1] == a[j2] {
				continue
			}
			n[j1], n[j2] = a[j2], a[j1]
			fn(n)
			n[j1], n[j2] = a[j1], a[j2]
		}
	}
}
