package align

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

func repeated(src, tgt string, n int) []corpus.SentencePair {
	pairs := make([]corpus.SentencePair, n)
	for i := range pairs {
		pairs[i] = corpus.SentencePair{Source: []string{src}, Target: []string{tgt}}
	}
	return pairs
}

func houseCorpus() []corpus.SentencePair {
	return []corpus.SentencePair{
		{Source: []string{"das", "haus"}, Target: []string{"the", "house"}},
		{Source: []string{"das", "buch"}, Target: []string{"the", "book"}},
		{Source: []string{"ein", "buch"}, Target: []string{"a", "book"}},
	}
}

var allVariants = []Variant{Lexical, Distortion, Fertility}

func TestTrain_RepeatedPair(t *testing.T) {
	for _, v := range allVariants {
		t.Run(v.String(), func(t *testing.T) {
			m, err := Train(context.Background(), repeated("bonjour", "hello", 5), Options{Iterations: 5, Variant: v})
			if err != nil {
				t.Fatalf("Train failed: %v", err)
			}
			best, ok := m.Table.Best("bonjour", true)
			if !ok {
				t.Fatal("expected a candidate for bonjour")
			}
			if best.Target != "hello" || best.Probability < 0.9 {
				t.Errorf("best(bonjour) = %+v, want hello >= 0.9", best)
			}
			if err := m.Table.CheckRows(); err != nil {
				t.Errorf("row check failed: %v", err)
			}
			if !m.Table.Frozen() {
				t.Error("trained table should be frozen")
			}
		})
	}
}

func TestTrain_HouseCorpus(t *testing.T) {
	want := map[string]string{"das": "the", "haus": "house", "buch": "book"}

	for _, v := range allVariants {
		t.Run(v.String(), func(t *testing.T) {
			m, err := Train(context.Background(), houseCorpus(), Options{Iterations: 10, Variant: v, Workers: 2})
			if err != nil {
				t.Fatalf("Train failed: %v", err)
			}
			for src, tgt := range want {
				best, ok := m.Table.Best(src, true)
				if !ok || best.Target != tgt {
					t.Errorf("best(%s) = %+v, want %s", src, best, tgt)
				}
			}
			if err := m.Table.CheckRows(); err != nil {
				t.Errorf("row check failed: %v", err)
			}
			for _, src := range m.Table.Sources() {
				if _, ok := m.Table.DistributionFor(src)[ttable.Null]; !ok {
					t.Errorf("row %q has no NULL entry", src)
				}
			}
		})
	}
}

func TestTrain_AuxiliaryTables(t *testing.T) {
	lex, err := Train(context.Background(), houseCorpus(), Options{Iterations: 2, Variant: Lexical})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if lex.Distortion != nil || lex.Fertility != nil {
		t.Error("lexical model should carry no distortion or fertility table")
	}

	dist, err := Train(context.Background(), houseCorpus(), Options{Iterations: 2, Variant: Distortion})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if dist.Distortion == nil || dist.Distortion.Len() != 2 {
		t.Fatalf("expected 2 distortion contexts, got %+v", dist.Distortion)
	}
	row, ok := dist.Distortion.Row(ttable.DistortionKey{SourcePos: 1, TargetLen: 2, SourceLen: 2})
	if !ok || math.Abs(row[0]+row[1]-1) > ttable.Tolerance {
		t.Errorf("unexpected distortion row %v", row)
	}

	fert, err := Train(context.Background(), houseCorpus(), Options{Iterations: 2, Variant: Fertility})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if fert.Fertility == nil || fert.Fertility.Len() != 4 {
		t.Fatalf("expected fertility for 4 target tokens, got %+v", fert.Fertility)
	}
	if fert.NullInsertion <= 0 || fert.NullInsertion >= 1 {
		t.Errorf("null insertion %g out of range", fert.NullInsertion)
	}
	if fert.Name() != "IBMModel3" {
		t.Errorf("Name() = %q", fert.Name())
	}
}

func TestTrain_EmptyCorpus(t *testing.T) {
	m, err := Train(context.Background(), nil, Options{Iterations: 3})
	if err != nil {
		t.Fatalf("empty corpus should not fail: %v", err)
	}
	if m.Table.Len() != 0 {
		t.Errorf("expected empty table, got %d sources", m.Table.Len())
	}
}

func TestTrain_InvalidIterations(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Train(context.Background(), houseCorpus(), Options{Iterations: n})
		if !errors.Is(err, corpus.ErrInput) {
			t.Errorf("iterations=%d: expected ErrInput, got %v", n, err)
		}
	}
}

func TestTrainParallel_Mismatch(t *testing.T) {
	_, err := TrainParallel(context.Background(),
		[][]string{{"a"}, {"b"}}, [][]string{{"x"}}, false, Options{Iterations: 1})
	if !errors.Is(err, corpus.ErrInput) {
		t.Errorf("expected ErrInput, got %v", err)
	}
}

func TestTrainParallel_Reverse(t *testing.T) {
	m, err := TrainParallel(context.Background(),
		[][]string{{"bonjour"}}, [][]string{{"hello"}}, true, Options{Iterations: 2})
	if err != nil {
		t.Fatalf("TrainParallel failed: %v", err)
	}
	if !m.Table.Has("hello") || m.Table.Has("bonjour") {
		t.Errorf("reverse training should key rows by the second corpus: %v", m.Table.Sources())
	}
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, houseCorpus(), Options{Iterations: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTrain_WorkerCountDoesNotChangeResult(t *testing.T) {
	one, err := Train(context.Background(), houseCorpus(), Options{Iterations: 5, Workers: 1})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	three, err := Train(context.Background(), houseCorpus(), Options{Iterations: 5, Workers: 3})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	for _, src := range one.Table.Sources() {
		a, b := one.Table.DistributionFor(src), three.Table.DistributionFor(src)
		for tgt, p := range a {
			if math.Abs(p-b[tgt]) > 1e-9 {
				t.Errorf("%s->%s: %g with 1 worker, %g with 3", src, tgt, p, b[tgt])
			}
		}
	}
}

func TestTrain_LogsIterations(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	_, err := Train(context.Background(), houseCorpus(), Options{
		Iterations: 3,
		Variant:    Distortion,
		Logger:     zap.New(core),
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if got := logs.FilterMessage("em iteration").Len(); got != 6 {
		t.Errorf("expected 6 iteration log lines (2 stages x 3), got %d", got)
	}
	for _, e := range logs.FilterMessage("em iteration").All() {
		if _, ok := e.ContextMap()["log_likelihood"]; !ok {
			t.Errorf("iteration log missing log_likelihood: %v", e.ContextMap())
		}
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"lexical", Lexical, false},
		{"IBMModel2", Distortion, false},
		{"ibm3", Fertility, false},
		{" Fertility ", Fertility, false},
		{"ibm4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVariant(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVariant(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVariant(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if Distortion.ModelName() != "IBMModel2" {
		t.Errorf("ModelName() = %q", Distortion.ModelName())
	}
}
