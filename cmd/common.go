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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/decoder"
	"github.com/valpere/wordalign/internal/store"
)

// setup resolves the configuration and builds the logger shared by every
// subcommand.
func setup() (*Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func openStore(path string, logger *zap.Logger) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// loadEngine reads the (dir, variant) model and wraps its table in a decoder
// engine. A missing model is reported as decoder.ErrModelNotLoaded.
func loadEngine(ctx context.Context, db *store.Store, dir corpus.Direction, variant align.Variant, cfg decoder.Config) (*decoder.Engine, error) {
	m, err := db.LoadModel(ctx, dir, variant)
	if errors.Is(err, store.ErrModelNotFound) {
		return nil, fmt.Errorf("%w: no %s model for %s, run \"wordalign train\" first",
			decoder.ErrModelNotLoaded, variant.ModelName(), dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	engine := decoder.NewEngine(cfg)
	engine.Load(dir, m.Table)
	return engine, nil
}

// resolveModel parses the direction and variant arguments shared by the
// model-reading subcommands.
func resolveModel(direction, variant string) (corpus.Direction, align.Variant, error) {
	dir, err := corpus.ParseDirection(direction)
	if err != nil {
		return corpus.Direction{}, 0, err
	}
	v, err := align.ParseVariant(variant)
	if err != nil {
		return corpus.Direction{}, 0, err
	}
	return dir, v, nil
}

func writeOutput(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
