package align

import (
	"fmt"
	"strings"

	"github.com/valpere/wordalign/internal/corpus"
)

// Variant selects the alignment model family.
type Variant int

const (
	// Lexical is IBM Model 1: word translation probabilities only.
	Lexical Variant = iota + 1
	// Distortion is IBM Model 2: lexical weights times position weights.
	Distortion
	// Fertility is IBM Model 3: adds fertility and NULL insertion, trained
	// with an approximate alignment search.
	Fertility
)

var variantNames = map[string]Variant{
	"lexical":    Lexical,
	"ibm1":       Lexical,
	"ibmmodel1":  Lexical,
	"distortion": Distortion,
	"ibm2":       Distortion,
	"ibmmodel2":  Distortion,
	"fertility":  Fertility,
	"ibm3":       Fertility,
	"ibmmodel3":  Fertility,
}

// ParseVariant accepts "lexical", "ibm1" or "IBMModel1" style names.
func ParseVariant(s string) (Variant, error) {
	v, ok := variantNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown model variant %q", corpus.ErrInput, s)
	}
	return v, nil
}

func (v Variant) String() string {
	switch v {
	case Lexical:
		return "lexical"
	case Distortion:
		return "distortion"
	case Fertility:
		return "fertility"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ModelName is the name used to namespace saved models: IBMModel1..3.
func (v Variant) ModelName() string {
	return fmt.Sprintf("IBMModel%d", int(v))
}

// Valid reports whether v is one of the defined variants.
func (v Variant) Valid() bool {
	return v >= Lexical && v <= Fertility
}
