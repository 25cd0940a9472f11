package decoder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

// Engine serves translations for every loaded direction. Tables are frozen,
// so concurrent Translate calls need no coordination beyond the registry
// lock.
type Engine struct {
	cfg Config

	mu     sync.RWMutex
	tables map[corpus.Direction]*ttable.Table
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		tables: make(map[corpus.Direction]*ttable.Table),
	}
}

// Load registers the table for a direction, replacing any previous one.
func (e *Engine) Load(dir corpus.Direction, table *ttable.Table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[dir] = table
}

// Directions returns the loaded directions sorted by name.
func (e *Engine) Directions() []corpus.Direction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	dirs := make([]corpus.Direction, 0, len(e.tables))
	for d := range e.tables {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].String() < dirs[j].String() })
	return dirs
}

func (e *Engine) table(dir corpus.Direction) (*ttable.Table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[dir]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, dir)
	}
	return t, nil
}

// Translate tokenizes sentence and decodes it in direction dir.
func (e *Engine) Translate(sentence string, dir corpus.Direction, strategy Strategy) (Result, error) {
	t, err := e.table(dir)
	if err != nil {
		return Result{}, err
	}
	return Decode(t, corpus.Tokenize(sentence), strategy, e.cfg)
}

// TranslateText is Translate returning only the text.
func (e *Engine) TranslateText(sentence string, dir corpus.Direction, strategy Strategy) (string, error) {
	res, err := e.Translate(sentence, dir, strategy)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Share is a candidate with its percentage of the row mass.
type Share struct {
	Target      string  `json:"target"`
	Probability float64 `json:"probability"`
	Percent     float64 `json:"percent"`
}

// Lookup returns up to n candidates for word, most probable first, NULL
// included. An unknown word yields an empty slice.
func (e *Engine) Lookup(dir corpus.Direction, word string, n int) ([]Share, error) {
	t, err := e.table(dir)
	if err != nil {
		return nil, err
	}

	word = corpus.Normalize(word)
	total := 0.0
	for _, p := range t.DistributionFor(word) {
		total += p
	}

	var out []Share
	for _, c := range t.TopK(word, n, nil) {
		s := Share{Target: c.Target, Probability: c.Probability}
		if total > 0 {
			s.Percent = c.Probability / total * 100
		}
		out = append(out, s)
	}
	return out, nil
}
