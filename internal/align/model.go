package align

import "github.com/valpere/wordalign/internal/ttable"

// Model is the frozen result of a training run.
type Model struct {
	Variant    Variant
	Iterations int
	Pairs      int
	// NullProbability is the NULL prior used by the lexical and distortion
	// stages.
	NullProbability float64
	// NullInsertion is the trained p1 of the fertility variant; zero for
	// the other variants.
	NullInsertion float64

	Table *ttable.Table
	// Distortion is nil for the lexical variant.
	Distortion *ttable.DistortionTable
	// Fertility is nil unless the variant is Fertility.
	Fertility *ttable.FertilityTable
}

func emptyModel(opts Options) *Model {
	t := ttable.New()
	t.Freeze()
	return &Model{
		Variant:         opts.Variant,
		Iterations:      opts.Iterations,
		NullProbability: opts.NullProbability,
		Table:           t,
	}
}

// Name is the namespace of the model in the store, e.g. "IBMModel2".
func (m *Model) Name() string {
	return m.Variant.ModelName()
}
