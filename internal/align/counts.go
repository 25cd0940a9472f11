package align

// distKey identifies a distortion context: source position j (1-based) in
// a pair with l target and m source tokens.
type distKey struct {
	j, l, m int32
}

// accumulator holds the expected counts gathered by one worker over its
// share of the corpus. Workers never share an accumulator; partials are
// merged in worker order once the expectation step is done.
type accumulator struct {
	t []float64
	d map[distKey][]float64
	// n is indexed by target id, then fertility.
	n [][]float64

	nullFert  float64
	nullSlots float64
	logLik    float64
}

func newAccumulator(keys, targets int) *accumulator {
	return &accumulator{
		t: make([]float64, keys),
		d: make(map[distKey][]float64),
		n: make([][]float64, targets),
	}
}

func (a *accumulator) reset() {
	clear(a.t)
	clear(a.d)
	for i := range a.n {
		a.n[i] = nil
	}
	a.nullFert, a.nullSlots, a.logLik = 0, 0, 0
}

func (a *accumulator) addDistortion(k distKey, i int, w float64) {
	row, ok := a.d[k]
	if !ok {
		row = make([]float64, k.l)
		a.d[k] = row
	}
	row[i-1] += w
}

func (a *accumulator) addFertility(e int32, phi, maxPhi int, w float64) {
	if a.n[e] == nil {
		a.n[e] = make([]float64, maxPhi+1)
	}
	a.n[e][phi] += w
}

// merge folds b into a.
func (a *accumulator) merge(b *accumulator) {
	for i, v := range b.t {
		a.t[i] += v
	}
	for k, row := range b.d {
		dst, ok := a.d[k]
		if !ok {
			dst = make([]float64, len(row))
			a.d[k] = dst
		}
		for i, v := range row {
			dst[i] += v
		}
	}
	for e, row := range b.n {
		if row == nil {
			continue
		}
		if a.n[e] == nil {
			a.n[e] = make([]float64, len(row))
		}
		for phi, v := range row {
			a.n[e][phi] += v
		}
	}
	a.nullFert += b.nullFert
	a.nullSlots += b.nullSlots
	a.logLik += b.logLik
}
