package align

import "math"

// pairScorer scores alignments of one sentence pair under the fertility
// model. Log tables are precomputed per pair; a scorer is owned by one
// worker and is not safe for concurrent use.
type pairScorer struct {
	l, m int
	maxF int

	logP1, logP0 float64
	// logT[j*(l+1)+i] is log t(f_j | e_i), i = 0 meaning NULL.
	logT []float64
	// logD[j*(l+1)+i] is log d(i | j, l, m); i = 0 is unused.
	logD []float64
	// logN[i*(maxF+1)+phi] is log n(phi | e_i); row 0 is unused.
	logN []float64

	phi []int
}

func (s *pairScorer) SourceLen() int { return s.m }
func (s *pairScorer) TargetLen() int { return s.l }

// LogProb is the Model 3 probability of the pair under a:
//
//	C(m-φ0, φ0) p1^φ0 p0^(m-2φ0) · Π φi! n(φi|ei) · Π t(fj|e_aj) · Π d(aj|j,l,m)
func (s *pairScorer) LogProb(a Alignment) float64 {
	clear(s.phi)
	for _, i := range a {
		s.phi[i]++
	}

	phi0 := s.phi[0]
	if 2*phi0 > s.m {
		return math.Inf(-1)
	}
	lp := logBinom(s.m-phi0, phi0) + float64(phi0)*s.logP1 + float64(s.m-2*phi0)*s.logP0

	for i := 1; i <= s.l; i++ {
		phi := s.phi[i]
		if phi > s.maxF {
			return math.Inf(-1)
		}
		lp += logFactorial(phi) + s.logN[i*(s.maxF+1)+phi]
	}

	stride := s.l + 1
	for j, i := range a {
		lp += s.logT[j*stride+i]
		if i > 0 {
			lp += s.logD[j*stride+i]
		}
	}
	return lp
}

func (tr *trainer) scorer(n int) *pairScorer {
	p := tr.pairs[n]
	l, m := len(p.tgt), len(p.src)
	maxF := tr.opts.MaxFertility
	stride := l + 1

	s := &pairScorer{
		l: l, m: m, maxF: maxF,
		logP1: math.Log(tr.p1),
		logP0: math.Log(1 - tr.p1),
		logT:  make([]float64, m*stride),
		logD:  make([]float64, m*stride),
		logN:  make([]float64, stride*(maxF+1)),
		phi:   make([]int, stride),
	}

	for j, f := range p.src {
		k := distKey{j: int32(j + 1), l: int32(l), m: int32(m)}
		s.logT[j*stride] = math.Log(tr.t[tr.lex.key(f, nullID)])
		for i, e := range p.tgt {
			s.logT[j*stride+i+1] = math.Log(tr.t[tr.lex.key(f, e)])
			s.logD[j*stride+i+1] = math.Log(tr.position(Distortion, k, i+1))
		}
	}
	for i, e := range p.tgt {
		for phi, v := range tr.n[e] {
			s.logN[(i+1)*(maxF+1)+phi] = math.Log(v)
		}
	}
	return s
}

// expectFertility searches for the best alignment of pair n, seeded with
// the previous best, and collects counts over the returned sample weighted
// by normalized alignment probability.
func (tr *trainer) expectFertility(n int, acc *accumulator) {
	p := tr.pairs[n]
	l, m := len(p.tgt), len(p.src)
	maxF := tr.opts.MaxFertility

	sc := tr.scorer(n)
	best, sample := tr.opts.Search.Search(sc, tr.best[n])
	tr.best[n] = best

	lps := make([]float64, len(sample))
	top := math.Inf(-1)
	for s, a := range sample {
		lps[s] = sc.LogProb(a)
		top = math.Max(top, lps[s])
	}

	// No alignment is possible, e.g. an empty target side: every source
	// token is forced onto NULL and only the lexical counts are kept.
	if math.IsInf(top, -1) {
		w := 1 / float64(len(sample))
		for _, a := range sample {
			for j, i := range a {
				acc.t[tr.lex.key(p.src[j], tr.targetAt(p, i))] += w
			}
		}
		return
	}

	sum := 0.0
	for s := range lps {
		lps[s] = math.Exp(lps[s] - top)
		sum += lps[s]
	}
	acc.logLik += top + math.Log(sum)

	phi := make([]int, l+1)
	for s, a := range sample {
		post := lps[s] / sum
		if post == 0 {
			continue
		}

		clear(phi)
		for j, i := range a {
			phi[i]++
			acc.t[tr.lex.key(p.src[j], tr.targetAt(p, i))] += post
			if i > 0 {
				acc.addDistortion(distKey{j: int32(j + 1), l: int32(l), m: int32(m)}, i, post)
			}
		}
		for i := 1; i <= l; i++ {
			acc.addFertility(p.tgt[i-1], min(phi[i], maxF), maxF, post)
		}
		acc.nullFert += post * float64(phi[0])
		acc.nullSlots += post * float64(m-2*phi[0])
	}
}

func (tr *trainer) targetAt(p encodedPair, i int) int32 {
	if i == 0 {
		return nullID
	}
	return p.tgt[i-1]
}

func logFactorial(n int) float64 {
	v, _ := math.Lgamma(float64(n + 1))
	return v
}

func logBinom(n, k int) float64 {
	return logFactorial(n) - logFactorial(k) - logFactorial(n-k)
}
