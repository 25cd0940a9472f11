package align

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/valpere/wordalign/internal/corpus"
)

const (
	// DefaultNullProbability is the prior weight of the NULL alignment.
	DefaultNullProbability = 0.05
	// DefaultMaxFertility bounds the fertility distribution, 0..10.
	DefaultMaxFertility = 10
	// DefaultSearchSteps bounds hill climbing per sentence pair.
	DefaultSearchSteps = 50
)

// Options configures a training run.
type Options struct {
	Iterations int
	Variant    Variant
	// Workers is the number of goroutines used in the expectation step.
	// Zero means GOMAXPROCS.
	Workers int
	// NullProbability is the prior weight of aligning a source word to NULL
	// in the lexical and distortion variants. Must lie in (0, 1).
	NullProbability float64
	// MaxFertility is the largest fertility the fertility variant models.
	MaxFertility int
	// Search is the alignment search used by the fertility variant.
	Search Searcher
	Logger *zap.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Iterations <= 0 {
		return o, fmt.Errorf("%w: iterations must be positive, got %d", corpus.ErrInput, o.Iterations)
	}
	if o.Variant == 0 {
		o.Variant = Lexical
	}
	if !o.Variant.Valid() {
		return o, fmt.Errorf("%w: unknown model variant %d", corpus.ErrInput, int(o.Variant))
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.NullProbability <= 0 || o.NullProbability >= 1 {
		o.NullProbability = DefaultNullProbability
	}
	if o.MaxFertility <= 0 {
		o.MaxFertility = DefaultMaxFertility
	}
	if o.Search == nil {
		o.Search = HillClimb{MaxSteps: DefaultSearchSteps}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o, nil
}
