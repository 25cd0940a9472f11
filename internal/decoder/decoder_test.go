package decoder

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

var frEn = corpus.Direction{From: "fr", To: "en"}

func testTable(t *testing.T) *ttable.Table {
	t.Helper()
	tbl := ttable.New()
	rows := []struct {
		src, tgt string
		p        float64
	}{
		{"le", ttable.Null, 0.2},
		{"le", "the", 0.8},
		{"chat", ttable.Null, 0.97},
		{"chat", "cat", 0.03},
		{"a", ttable.Null, 0.05},
		{"a", "abcdefg", 0.85},
		{"a", "has", 0.1},
		{"rien", ttable.Null, 1},
		{"noir", ttable.Null, 0.3},
		{"noir", "black2", 0.7},
	}
	for _, r := range rows {
		if err := tbl.Set(r.src, r.tgt, r.p); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	tbl.Freeze()
	return tbl
}

func TestDecode_Strategies(t *testing.T) {
	tbl := testTable(t)
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		tokens   []string
		strategy Strategy
		want     string
		fallback bool
	}{
		{"word by word", []string{"le", "chat"}, WordByWord, "the cat", false},
		{"conservative rejects weak", []string{"le", "chat"}, Conservative, "the chat", true},
		{"probabilistic", []string{"le", "chat"}, Probabilistic, "the cat", false},
		{"length filter", []string{"a"}, WordByWord, "has", false},
		{"probabilistic ignores filter", []string{"a"}, Probabilistic, "abcdefg", false},
		{"only null", []string{"rien"}, WordByWord, "[rien]", true},
		{"only null probabilistic", []string{"rien"}, Probabilistic, "rien", true},
		{"digit filter", []string{"noir"}, WordByWord, "[noir]", true},
		{"oov word by word", []string{"xyz123"}, WordByWord, "[xyz123]", true},
		{"oov probabilistic", []string{"xyz123"}, Probabilistic, "xyz123", true},
		{"oov conservative", []string{"xyz123"}, Conservative, "xyz123", true},
		{"empty input", nil, WordByWord, NoTranslation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tbl, tt.tokens, tt.strategy, cfg)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if res.Text != tt.want {
				t.Errorf("Text = %q, want %q", res.Text, tt.want)
			}
			if res.UsedFallback != tt.fallback {
				t.Errorf("UsedFallback = %v, want %v", res.UsedFallback, tt.fallback)
			}
			if len(res.Tokens) != len(tt.tokens) {
				t.Errorf("expected %d token results, got %d", len(tt.tokens), len(res.Tokens))
			}
		})
	}
}

func TestDecode_NoMarkersOutsideWordByWord(t *testing.T) {
	tbl := testTable(t)
	tokens := []string{"le", "chat", "rien", "noir", "a", "inconnu"}

	for _, s := range []Strategy{Probabilistic, Conservative} {
		res, err := Decode(tbl, tokens, s, DefaultConfig())
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", s, err)
		}
		if strings.ContainsAny(res.Text, "[]") {
			t.Errorf("%s produced a bracketed marker: %q", s, res.Text)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode(nil, []string{"le"}, WordByWord, DefaultConfig()); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("expected ErrModelNotLoaded, got %v", err)
	}
	if _, err := Decode(testTable(t), []string{"le"}, "greedy", DefaultConfig()); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("expected ErrUnsupportedStrategy, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"word_by_word", "Probabilistic", " conservative "} {
		if _, err := ParseStrategy(s); err != nil {
			t.Errorf("ParseStrategy(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseStrategy("beam"); !errors.Is(err, ErrUnsupportedStrategy) {
		t.Errorf("expected ErrUnsupportedStrategy, got %v", err)
	}
}

func TestEngine_TrainedEndToEnd(t *testing.T) {
	pairs := make([]corpus.SentencePair, 5)
	for i := range pairs {
		pairs[i] = corpus.SentencePair{Source: []string{"bonjour"}, Target: []string{"hello"}}
	}
	m, err := align.Train(context.Background(), pairs, align.Options{Iterations: 10})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	eng := NewEngine(DefaultConfig())
	eng.Load(frEn, m.Table)

	got, err := eng.TranslateText("Bonjour", frEn, WordByWord)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Translate(bonjour) = %q, want hello", got)
	}

	got, err = eng.TranslateText("xyz123", frEn, WordByWord)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "[xyz123]" {
		t.Errorf("Translate(xyz123) = %q, want [xyz123]", got)
	}
}

func TestEngine_MissingDirection(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	eng.Load(frEn, testTable(t))

	_, err := eng.Translate("hello", frEn.Reverse(), WordByWord)
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("expected ErrModelNotLoaded, got %v", err)
	}
	if dirs := eng.Directions(); len(dirs) != 1 || dirs[0] != frEn {
		t.Errorf("Directions() = %v", dirs)
	}
}

func TestEngine_Lookup(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	eng.Load(frEn, testTable(t))

	shares, err := eng.Lookup(frEn, "LE", 10)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(shares) != 2 || shares[0].Target != "the" {
		t.Fatalf("unexpected shares: %+v", shares)
	}
	if math.Abs(shares[0].Percent-80) > 1e-6 {
		t.Errorf("Percent = %g, want 80", shares[0].Percent)
	}

	shares, err = eng.Lookup(frEn, "inconnu", 10)
	if err != nil || len(shares) != 0 {
		t.Errorf("unknown word: %v, %v", shares, err)
	}
}

func TestEngine_ConcurrentTranslate(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	eng.Load(frEn, testTable(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range Strategies {
				if _, err := eng.Translate("le chat", frEn, s); err != nil {
					t.Errorf("Translate failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
