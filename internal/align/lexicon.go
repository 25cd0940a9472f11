package align

import (
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

// nullID is the interned id of the NULL target token.
const nullID int32 = 0

// lexicon interns tokens and the co-occurrence support of the corpus.
// Every (source, target) pair that co-occurs in some sentence pair, plus
// (source, NULL) for every source token, gets a dense key index.
type lexicon struct {
	sources []string
	srcID   map[string]int32
	targets []string
	tgtID   map[string]int32

	keys map[uint64]int32
	keyF []int32
	keyE []int32
	// rows lists the key indexes of each source token in first-seen order,
	// NULL first.
	rows [][]int32
	// colSize counts the source tokens in the support of each target token.
	colSize []int
}

type encodedPair struct {
	src []int32
	tgt []int32
}

func pack(f, e int32) uint64 {
	return uint64(uint32(f))<<32 | uint64(uint32(e))
}

func buildLexicon(pairs []corpus.SentencePair) (*lexicon, []encodedPair) {
	lex := &lexicon{
		srcID:   make(map[string]int32),
		targets: []string{ttable.Null},
		tgtID:   map[string]int32{ttable.Null: nullID},
		keys:    make(map[uint64]int32),
		colSize: []int{0},
	}

	encoded := make([]encodedPair, len(pairs))
	for n, p := range pairs {
		ep := encodedPair{
			src: make([]int32, len(p.Source)),
			tgt: make([]int32, len(p.Target)),
		}
		for i, tok := range p.Target {
			ep.tgt[i] = lex.target(tok)
		}
		for j, tok := range p.Source {
			f := lex.source(tok)
			ep.src[j] = f
			lex.link(f, nullID)
			for _, e := range ep.tgt {
				lex.link(f, e)
			}
		}
		encoded[n] = ep
	}
	return lex, encoded
}

func (l *lexicon) source(tok string) int32 {
	if id, ok := l.srcID[tok]; ok {
		return id
	}
	id := int32(len(l.sources))
	l.sources = append(l.sources, tok)
	l.srcID[tok] = id
	l.rows = append(l.rows, nil)
	return id
}

func (l *lexicon) target(tok string) int32 {
	if id, ok := l.tgtID[tok]; ok {
		return id
	}
	id := int32(len(l.targets))
	l.targets = append(l.targets, tok)
	l.tgtID[tok] = id
	l.colSize = append(l.colSize, 0)
	return id
}

func (l *lexicon) link(f, e int32) {
	k := pack(f, e)
	if _, ok := l.keys[k]; ok {
		return
	}
	idx := int32(len(l.keyF))
	l.keys[k] = idx
	l.keyF = append(l.keyF, f)
	l.keyE = append(l.keyE, e)
	l.rows[f] = append(l.rows[f], idx)
	l.colSize[e]++
}

// key returns the dense index of (f, e). The pair must be in the support.
func (l *lexicon) key(f, e int32) int32 {
	return l.keys[pack(f, e)]
}

func (l *lexicon) size() int {
	return len(l.keyF)
}
