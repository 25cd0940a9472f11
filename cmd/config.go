/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/auditor"
	"github.com/valpere/wordalign/internal/decoder"
	"github.com/valpere/wordalign/internal/quality"
)

// Config is the merged view of flags, WORDALIGN_* environment variables and
// the optional YAML config file.
type Config struct {
	DB      string       `mapstructure:"db"`
	Verbose bool         `mapstructure:"verbose"`
	Train   TrainConfig  `mapstructure:"train"`
	Decode  DecodeConfig `mapstructure:"decode"`
	Audit   AuditConfig  `mapstructure:"audit"`
}

type TrainConfig struct {
	Iterations      int           `mapstructure:"iterations"`
	Variant         string        `mapstructure:"variant"`
	Workers         int           `mapstructure:"workers"`
	NullProbability float64       `mapstructure:"null_probability"`
	MaxFertility    int           `mapstructure:"max_fertility"`
	SearchSteps     int           `mapstructure:"search_steps"`
	Limit           int           `mapstructure:"limit"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type DecodeConfig struct {
	Variant                    string  `mapstructure:"variant"`
	Strategy                   string  `mapstructure:"strategy"`
	TopK                       int     `mapstructure:"top_k"`
	Threshold                  float64 `mapstructure:"threshold"`
	MinProbability             float64 `mapstructure:"min_probability"`
	ConservativeMinProbability float64 `mapstructure:"conservative_min_probability"`
	MaxLengthRatio             float64 `mapstructure:"max_length_ratio"`
	DeniedSymbols              string  `mapstructure:"denied_symbols"`
	AllowDigits                bool    `mapstructure:"allow_digits"`
}

type AuditConfig struct {
	Variant    string  `mapstructure:"variant"`
	SampleSize int     `mapstructure:"sample_size"`
	Seed       int64   `mapstructure:"seed"`
	Floor      float64 `mapstructure:"floor"`
	Format     string  `mapstructure:"format"`
}

func init() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	dec := decoder.DefaultConfig()

	v.SetDefault("db", "./data/wordalign.db")
	v.SetDefault("train.iterations", 10)
	v.SetDefault("train.variant", "lexical")
	v.SetDefault("train.workers", 0)
	v.SetDefault("train.null_probability", align.DefaultNullProbability)
	v.SetDefault("train.max_fertility", align.DefaultMaxFertility)
	v.SetDefault("train.search_steps", align.DefaultSearchSteps)
	v.SetDefault("train.limit", 0)
	v.SetDefault("train.timeout", time.Duration(0))

	v.SetDefault("decode.variant", "lexical")
	v.SetDefault("decode.strategy", string(decoder.WordByWord))
	v.SetDefault("decode.top_k", dec.TopK)
	v.SetDefault("decode.threshold", dec.Threshold)
	v.SetDefault("decode.min_probability", dec.Filter.MinProbability)
	v.SetDefault("decode.conservative_min_probability", dec.ConservativeMinProbability)
	v.SetDefault("decode.max_length_ratio", dec.Filter.MaxLengthRatio)
	v.SetDefault("decode.denied_symbols", dec.Filter.DeniedSymbols)
	v.SetDefault("decode.allow_digits", false)

	v.SetDefault("audit.variant", "lexical")
	v.SetDefault("audit.sample_size", auditor.DefaultSampleSize)
	v.SetDefault("audit.seed", 0)
	v.SetDefault("audit.floor", auditor.DefaultFloor)
	v.SetDefault("audit.format", "text")
}

func loadConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (c TrainConfig) alignOptions(logger *zap.Logger) (align.Options, error) {
	variant, err := align.ParseVariant(c.Variant)
	if err != nil {
		return align.Options{}, err
	}
	return align.Options{
		Iterations:      c.Iterations,
		Variant:         variant,
		Workers:         c.Workers,
		NullProbability: c.NullProbability,
		MaxFertility:    c.MaxFertility,
		Search:          align.HillClimb{MaxSteps: c.SearchSteps},
		Logger:          logger,
	}, nil
}

func (c DecodeConfig) decoderConfig() decoder.Config {
	digits := quality.RejectUnexpectedDigits
	if c.AllowDigits {
		digits = quality.AllowDigits
	}
	return decoder.Config{
		Filter: quality.Config{
			MinProbability: c.MinProbability,
			MaxLengthRatio: c.MaxLengthRatio,
			DeniedSymbols:  c.DeniedSymbols,
			DigitMismatch:  digits,
		},
		TopK:                       c.TopK,
		Threshold:                  c.Threshold,
		ConservativeMinProbability: c.ConservativeMinProbability,
	}
}

// newLogger builds the diagnostic logger: human-readable and debug level
// with --verbose, JSON at warn level otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
