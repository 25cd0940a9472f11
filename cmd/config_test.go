package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/decoder"
	"github.com/valpere/wordalign/internal/quality"
	"github.com/valpere/wordalign/internal/ttable"
)

func TestDecodeConfig_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig failed: %v", err)
	}

	if cfg.DB != "./data/wordalign.db" {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.Train.Iterations != 10 || cfg.Train.Variant != "lexical" {
		t.Errorf("unexpected train defaults: %+v", cfg.Train)
	}
	if cfg.Train.NullProbability != align.DefaultNullProbability {
		t.Errorf("NullProbability = %v", cfg.Train.NullProbability)
	}
	if cfg.Audit.SampleSize != 100 || cfg.Audit.Format != "text" {
		t.Errorf("unexpected audit defaults: %+v", cfg.Audit)
	}
	if got := cfg.Decode.decoderConfig(); got != decoder.DefaultConfig() {
		t.Errorf("decoderConfig() = %+v, want %+v", got, decoder.DefaultConfig())
	}
}

func TestDecodeConfig_Environment(t *testing.T) {
	t.Setenv("WORDALIGN_TRAIN_ITERATIONS", "3")
	t.Setenv("WORDALIGN_TRAIN_TIMEOUT", "90s")
	t.Setenv("WORDALIGN_DECODE_STRATEGY", "conservative")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WORDALIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decodeConfig failed: %v", err)
	}
	if cfg.Train.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", cfg.Train.Iterations)
	}
	if cfg.Train.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Train.Timeout)
	}
	if cfg.Decode.Strategy != "conservative" {
		t.Errorf("Strategy = %q, want conservative", cfg.Decode.Strategy)
	}
}

func TestTrainConfig_AlignOptions(t *testing.T) {
	c := TrainConfig{Iterations: 4, Variant: "ibm3", Workers: 2, NullProbability: 0.1, MaxFertility: 5, SearchSteps: 7}

	opts, err := c.alignOptions(nil)
	if err != nil {
		t.Fatalf("alignOptions failed: %v", err)
	}
	if opts.Variant != align.Fertility || opts.Iterations != 4 || opts.Workers != 2 {
		t.Errorf("unexpected options: %+v", opts)
	}
	if hc, ok := opts.Search.(align.HillClimb); !ok || hc.MaxSteps != 7 {
		t.Errorf("Search = %#v, want HillClimb{MaxSteps: 7}", opts.Search)
	}

	c.Variant = "ibm9"
	if _, err := c.alignOptions(nil); !errors.Is(err, corpus.ErrInput) {
		t.Errorf("expected ErrInput for unknown variant, got %v", err)
	}
}

func TestDecodeConfig_AllowDigits(t *testing.T) {
	c := DecodeConfig{AllowDigits: true}
	if got := c.decoderConfig().Filter.DigitMismatch; got != quality.AllowDigits {
		t.Errorf("DigitMismatch = %v, want AllowDigits", got)
	}
}

func TestTranslateDocument(t *testing.T) {
	tbl := ttable.New()
	for _, r := range []struct {
		src, tgt string
		p        float64
	}{
		{"le", "the", 0.8},
		{"le", ttable.Null, 0.2},
		{"chat", "cat", 0.9},
		{"chat", ttable.Null, 0.1},
	} {
		if err := tbl.Set(r.src, r.tgt, r.p); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	tbl.Freeze()

	dir := corpus.Direction{From: "fr", To: "en"}
	engine := decoder.NewEngine(decoder.DefaultConfig())
	engine.Load(dir, tbl)

	got, fallbacks, err := translateDocument(engine, "le chat\n\nchien", dir, decoder.WordByWord)
	if err != nil {
		t.Fatalf("translateDocument failed: %v", err)
	}
	if want := "the cat\n\n[chien]\n"; got != want {
		t.Errorf("translateDocument() = %q, want %q", got, want)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}

	other := corpus.Direction{From: "de", To: "en"}
	if _, _, err := translateDocument(engine, "hallo", other, decoder.WordByWord); !errors.Is(err, decoder.ErrModelNotLoaded) {
		t.Errorf("expected ErrModelNotLoaded, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		logger, err := newLogger(verbose)
		if err != nil {
			t.Fatalf("newLogger(%v) failed: %v", verbose, err)
		}
		if logger == nil {
			t.Fatalf("newLogger(%v) returned nil", verbose)
		}
	}
}
