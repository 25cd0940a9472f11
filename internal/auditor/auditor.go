// Package auditor samples a trained translation table and sorts its best
// translations into plausible and suspicious ones. It only reads the table.
package auditor

import (
	"math/rand"
	"sort"
	"time"

	"github.com/valpere/wordalign/internal/quality"
	"github.com/valpere/wordalign/internal/ttable"
)

const (
	DefaultSampleSize = 100
	// DefaultFloor is the probability below which a best translation is
	// suspicious whatever its shape.
	DefaultFloor = 0.001
	// MaxExamples caps the examples kept per bucket.
	MaxExamples = 10
)

// Options tunes an audit. Zero values select the defaults.
type Options struct {
	SampleSize int
	// Rand drives the sampling; nil seeds from the clock.
	Rand   *rand.Rand
	Filter quality.Config
	Floor  float64
}

// Example is one audited source token with its best content translation.
type Example struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason,omitempty"`
}

// Report is the outcome of an audit.
type Report struct {
	TotalWords        int       `json:"total_words"`
	TotalTranslations int       `json:"total_translations"`
	AvgTranslations   float64   `json:"avg_translations"`
	Sampled           int       `json:"sampled"`
	GoodCount         int       `json:"good_count"`
	SuspiciousCount   int       `json:"suspicious_count"`
	QualityRatio      float64   `json:"quality_ratio"`
	Good              []Example `json:"good"`
	Suspicious        []Example `json:"suspicious"`
}

// Audit draws up to opts.SampleSize source tokens without replacement and
// classifies the best non-NULL translation of each.
func Audit(table *ttable.Table, opts Options) Report {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Filter == (quality.Config{}) {
		opts.Filter = quality.DefaultConfig()
	}
	if opts.Floor <= 0 {
		opts.Floor = DefaultFloor
	}

	rep := Report{
		TotalWords:        table.Len(),
		TotalTranslations: table.Entries(),
	}
	if rep.TotalWords == 0 {
		return rep
	}
	rep.AvgTranslations = float64(rep.TotalTranslations) / float64(rep.TotalWords)

	for _, src := range sample(table.Sources(), opts.SampleSize, opts.Rand) {
		ex, good := classify(table, src, opts)
		if good {
			rep.GoodCount++
			rep.Good = append(rep.Good, ex)
		} else {
			rep.SuspiciousCount++
			rep.Suspicious = append(rep.Suspicious, ex)
		}
	}

	rep.Sampled = rep.GoodCount + rep.SuspiciousCount
	if rep.Sampled > 0 {
		rep.QualityRatio = float64(rep.GoodCount) / float64(rep.Sampled)
	}
	rep.Good = topExamples(rep.Good)
	rep.Suspicious = topExamples(rep.Suspicious)
	return rep
}

func classify(table *ttable.Table, src string, opts Options) (Example, bool) {
	best, ok := table.Best(src, true)
	if !ok {
		null, _ := table.Best(src, false)
		return Example{Source: src, Target: null.Target, Probability: null.Probability, Reason: "no content translation"}, false
	}

	ex := Example{Source: src, Target: best.Target, Probability: best.Probability}
	if r := opts.Filter.CheckShape(src, best.Target); r != quality.OK {
		ex.Reason = r.String()
		return ex, false
	}
	if best.Probability < opts.Floor {
		ex.Reason = quality.LowProbability.String()
		return ex, false
	}
	return ex, true
}

// sample picks n items without replacement with a partial Fisher-Yates
// shuffle. items is modified.
func sample(items []string, n int, rng *rand.Rand) []string {
	if n > len(items) {
		n = len(items)
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(items)-i)
		items[i], items[j] = items[j], items[i]
	}
	return items[:n]
}

func topExamples(ex []Example) []Example {
	sort.SliceStable(ex, func(i, j int) bool { return ex[i].Probability > ex[j].Probability })
	if len(ex) > MaxExamples {
		ex = ex[:MaxExamples]
	}
	return ex
}
