// Package align trains word-alignment models on a sentence-aligned corpus
// with expectation-maximization.
//
// The NULL-augmented target sentence generates the source sentence: every
// source position aligns to one target position or to NULL. Training keeps
// the generative parameters t(f|e), normalized per target token. The table
// handed back is the posterior view the decoder needs: for each source token
// f, its expected alignment counts normalized over target tokens (NULL
// included), so every row is a distribution that sums to 1.
//
// The distortion variant is seeded by running the lexical variant for the
// same number of iterations, and the fertility variant is seeded by the
// distortion variant.
package align

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

const cancelCheckEvery = 256

type trainer struct {
	opts  Options
	lex   *lexicon
	pairs []encodedPair

	t  []float64
	d  map[distKey][]float64
	n  [][]float64
	p1 float64

	// best holds the search result of each pair from the previous fertility
	// iteration; it seeds the next search.
	best []Alignment

	parts  []*accumulator
	ranges [][2]int
	last   *accumulator
}

// Train runs opts.Iterations EM iterations per training stage over pairs and
// returns the trained model. An empty corpus yields an empty model; a
// non-positive iteration count is rejected with corpus.ErrInput.
func Train(ctx context.Context, pairs []corpus.SentencePair, opts Options) (*Model, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		opts.Logger.Warn("training on an empty corpus", zap.String("variant", opts.Variant.String()))
		return emptyModel(opts), nil
	}

	tr := newTrainer(pairs, opts)
	opts.Logger.Info("training started",
		zap.String("variant", opts.Variant.String()),
		zap.Int("pairs", len(pairs)),
		zap.Int("source_vocab", len(tr.lex.sources)),
		zap.Int("target_vocab", len(tr.lex.targets)-1),
		zap.Int("support", tr.lex.size()),
		zap.Int("workers", len(tr.parts)),
	)

	for stage := Lexical; stage <= opts.Variant; stage++ {
		tr.enter(stage)
		for it := 1; it <= opts.Iterations; it++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training cancelled: %w", err)
			}

			start := time.Now()
			acc, err := tr.expect(ctx, stage)
			if err != nil {
				return nil, fmt.Errorf("training cancelled: %w", err)
			}
			repaired := tr.maximize(acc, stage)

			opts.Logger.Info("em iteration",
				zap.String("variant", opts.Variant.String()),
				zap.String("stage", stage.String()),
				zap.Int("iteration", it),
				zap.Int("of", opts.Iterations),
				zap.Float64("log_likelihood", acc.logLik),
				zap.Int("repaired_rows", repaired),
				zap.Duration("took", time.Since(start)),
			)
		}
	}

	return tr.model()
}

// TrainParallel aligns two tokenized corpora line by line and trains on
// them. When reverse is set the second corpus becomes the source side.
func TrainParallel(ctx context.Context, source, target [][]string, reverse bool, opts Options) (*Model, error) {
	pairs, err := corpus.Align(source, target, reverse)
	if err != nil {
		return nil, err
	}
	return Train(ctx, pairs, opts)
}

func newTrainer(pairs []corpus.SentencePair, opts Options) *trainer {
	lex, encoded := buildLexicon(pairs)
	tr := &trainer{
		opts:  opts,
		lex:   lex,
		pairs: encoded,
		t:     make([]float64, lex.size()),
	}

	workers := opts.Workers
	if workers > len(encoded) {
		workers = len(encoded)
	}
	for w := 0; w < workers; w++ {
		lo := w * len(encoded) / workers
		hi := (w + 1) * len(encoded) / workers
		tr.ranges = append(tr.ranges, [2]int{lo, hi})
		tr.parts = append(tr.parts, newAccumulator(lex.size(), len(lex.targets)))
	}
	return tr
}

// enter initializes the parameters a stage adds on top of the previous one.
func (tr *trainer) enter(stage Variant) {
	switch stage {
	case Lexical:
		for k, e := range tr.lex.keyE {
			tr.t[k] = 1 / float64(tr.lex.colSize[e])
		}
	case Distortion:
		tr.d = make(map[distKey][]float64)
		for _, p := range tr.pairs {
			l, m := len(p.tgt), len(p.src)
			if l == 0 {
				continue
			}
			for j := 1; j <= m; j++ {
				k := distKey{j: int32(j), l: int32(l), m: int32(m)}
				if _, ok := tr.d[k]; ok {
					continue
				}
				row := make([]float64, l)
				for i := range row {
					row[i] = 1 / float64(l)
				}
				tr.d[k] = row
			}
		}
	case Fertility:
		tr.n = make([][]float64, len(tr.lex.targets))
		u := 1 / float64(tr.opts.MaxFertility+1)
		for e := 1; e < len(tr.n); e++ {
			row := make([]float64, tr.opts.MaxFertility+1)
			for phi := range row {
				row[phi] = u
			}
			tr.n[e] = row
		}
		tr.p1 = 0.5
		tr.best = make([]Alignment, len(tr.pairs))
		for i := range tr.pairs {
			tr.best[i] = tr.viterbi(i)
		}
	}
}

// expect runs the expectation step over all pairs, one worker per range,
// and merges the partial counts in worker order.
func (tr *trainer) expect(ctx context.Context, stage Variant) (*accumulator, error) {
	for _, p := range tr.parts {
		p.reset()
	}

	g, gctx := errgroup.WithContext(ctx)
	for w, r := range tr.ranges {
		acc := tr.parts[w]
		lo, hi := r[0], r[1]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%cancelCheckEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if stage == Fertility {
					tr.expectFertility(i, acc)
				} else {
					tr.expectPosterior(i, stage, acc)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := tr.parts[0]
	for _, p := range tr.parts[1:] {
		merged.merge(p)
	}
	tr.last = merged
	return merged, nil
}

// position is the prior weight of target position i (1-based) for source
// position j under the current stage.
func (tr *trainer) position(stage Variant, k distKey, i int) float64 {
	if stage == Lexical || tr.d == nil {
		return 1 / float64(k.l)
	}
	row, ok := tr.d[k]
	if !ok {
		return 1 / float64(k.l)
	}
	return row[i-1]
}

// expectPosterior collects exact posterior alignment counts for one pair
// under the lexical or distortion model.
func (tr *trainer) expectPosterior(n int, stage Variant, acc *accumulator) {
	p := tr.pairs[n]
	l, m := len(p.tgt), len(p.src)
	p0 := tr.opts.NullProbability

	w := make([]float64, l)
	keys := make([]int32, l)
	for j, f := range p.src {
		k := distKey{j: int32(j + 1), l: int32(l), m: int32(m)}

		kNull := tr.lex.key(f, nullID)
		wNull := tr.t[kNull]
		if l > 0 {
			wNull *= p0
		}
		total := wNull
		for i, e := range p.tgt {
			keys[i] = tr.lex.key(f, e)
			w[i] = tr.t[keys[i]] * (1 - p0) * tr.position(stage, k, i+1)
			total += w[i]
		}

		acc.logLik += math.Log(total)
		acc.t[kNull] += wNull / total
		for i := range p.tgt {
			post := w[i] / total
			acc.t[keys[i]] += post
			if stage == Distortion {
				acc.addDistortion(k, i+1, post)
			}
		}
	}
}

// viterbi returns the most probable alignment of pair n under the current
// lexical and distortion parameters.
func (tr *trainer) viterbi(n int) Alignment {
	p := tr.pairs[n]
	l, m := len(p.tgt), len(p.src)
	p0 := tr.opts.NullProbability

	a := make(Alignment, m)
	for j, f := range p.src {
		k := distKey{j: int32(j + 1), l: int32(l), m: int32(m)}
		best := tr.t[tr.lex.key(f, nullID)] * p0
		for i, e := range p.tgt {
			if w := tr.t[tr.lex.key(f, e)] * (1 - p0) * tr.position(Distortion, k, i+1); w > best {
				best, a[j] = w, i+1
			}
		}
	}
	return a
}

// maximize re-estimates the parameters of stage from acc and reports how
// many distributions had no mass and were reset to uniform.
func (tr *trainer) maximize(acc *accumulator, stage Variant) int {
	repaired := tr.normalizeT(acc.t)

	if stage >= Distortion {
		for k, counts := range acc.d {
			row := make([]float64, len(counts))
			copy(row, counts)
			if ttable.NormalizeRow(row) {
				repaired++
			}
			tr.d[k] = row
		}
	}

	if stage == Fertility {
		for e, counts := range acc.n {
			if counts == nil {
				continue
			}
			row := make([]float64, len(counts))
			copy(row, counts)
			if ttable.NormalizeRow(row) {
				repaired++
			}
			tr.n[e] = row
		}
		if total := acc.nullFert + acc.nullSlots; total > 0 {
			tr.p1 = math.Min(math.Max(acc.nullFert/total, ttable.Epsilon), 1-ttable.Epsilon)
		}
	}
	return repaired
}

// normalizeT turns expected counts into t(f|e), normalized per target token.
func (tr *trainer) normalizeT(counts []float64) int {
	totals := make([]float64, len(tr.lex.targets))
	for k, c := range counts {
		totals[tr.lex.keyE[k]] += c
	}

	repaired := 0
	empty := make([]bool, len(totals))
	for e, tot := range totals {
		if tr.lex.colSize[e] > 0 && (!(tot > 0) || math.IsInf(tot, 0)) {
			empty[e] = true
			repaired++
		}
	}

	for k, c := range counts {
		e := tr.lex.keyE[k]
		v := ttable.Epsilon
		if empty[e] {
			v = 1 / float64(tr.lex.colSize[e])
		} else if q := c / totals[e]; q > ttable.Epsilon {
			v = q
		}
		tr.t[k] = v
	}

	clear(totals)
	for k, v := range tr.t {
		totals[tr.lex.keyE[k]] += v
	}
	for k := range tr.t {
		tr.t[k] /= totals[tr.lex.keyE[k]]
	}
	return repaired
}

// model freezes the trained parameters into exported tables.
func (tr *trainer) model() (*Model, error) {
	m := emptyModel(tr.opts)
	m.Pairs = len(tr.pairs)
	m.Table = ttable.New()

	vals := make([]float64, 0, 16)
	for f, row := range tr.lex.rows {
		vals = vals[:0]
		for _, k := range row {
			vals = append(vals, tr.last.t[k])
		}
		ttable.NormalizeRow(vals)
		for idx, k := range row {
			if err := m.Table.Set(tr.lex.sources[f], tr.lex.targets[tr.lex.keyE[k]], vals[idx]); err != nil {
				return nil, fmt.Errorf("failed to build translation table: %w", err)
			}
		}
	}
	m.Table.Freeze()

	if tr.d != nil {
		m.Distortion = ttable.NewDistortionTable()
		for k, row := range tr.d {
			key := ttable.DistortionKey{SourcePos: int(k.j), TargetLen: int(k.l), SourceLen: int(k.m)}
			if err := m.Distortion.Set(key, row); err != nil {
				return nil, fmt.Errorf("failed to build distortion table: %w", err)
			}
		}
		m.Distortion.Freeze()
	}

	if tr.n != nil {
		m.Fertility = ttable.NewFertilityTable()
		for e := 1; e < len(tr.n); e++ {
			if tr.lex.colSize[e] == 0 {
				continue
			}
			if err := m.Fertility.Set(tr.lex.targets[e], tr.n[e]); err != nil {
				return nil, fmt.Errorf("failed to build fertility table: %w", err)
			}
		}
		m.Fertility.Freeze()
		m.NullInsertion = tr.p1
	}

	return m, nil
}
