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
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/wordalign/internal"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/detector"
	"github.com/valpere/wordalign/internal/orchestrator"
)

var (
	tmxFile        string
	sourceFile     string
	targetFile     string
	trainFrom      string
	trainTo        string
	verifyLang     bool
	bothDirections bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train word alignment models from a parallel corpus",
	Long: `Train translation probabilities with expectation-maximization.

Corpus sources:
  --tmx file.tmx --from fr --to en        Translation Memory eXchange file
  --source-file fr.txt --target-file en.txt   line-aligned plain text

Model variants:
  - lexical      IBM Model 1, lexical translation only
  - distortion   IBM Model 2, adds position-dependent alignment
  - fertility    IBM Model 3, adds fertility and NULL insertion

By default both directions (from_to_to and to_to_from) are trained
concurrently and saved to the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if trainFrom == "" || trainTo == "" {
			return fmt.Errorf("--from and --to are required")
		}
		dir := corpus.Direction{From: trainFrom, To: trainTo}

		source, target, err := readCorpus(dir, cfg.Train.Limit)
		if err != nil {
			return err
		}

		opts, err := cfg.Train.alignOptions(logger)
		if err != nil {
			return err
		}

		var jobs []orchestrator.Job
		if bothDirections {
			jobs, err = orchestrator.BothDirections(dir, source, target)
		} else {
			var pairs []corpus.SentencePair
			pairs, err = corpus.Align(source, target, false)
			jobs = []orchestrator.Job{{Direction: dir, Pairs: pairs}}
		}
		if err != nil {
			return fmt.Errorf("failed to align corpus: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintf(os.Stderr, "Training %s on %s sentence pairs (%d iterations per stage, %d direction(s))...\n",
			opts.Variant.ModelName(), humanize.Comma(int64(len(source))), opts.Iterations, len(jobs))

		orch := orchestrator.New(nil, orchestrator.OrchestratorConfig{
			Timeout: cfg.Train.Timeout,
			Options: opts,
		}, logger)
		result := orch.Execute(ctx, jobs)

		for i, out := range result.Outcomes {
			srcVocab, tgtVocab := corpus.Vocabulary(jobs[i].Pairs)
			run := internal.TrainingRun{
				Direction:   out.Direction.String(),
				Variant:     opts.Variant.ModelName(),
				Iterations:  opts.Iterations,
				Pairs:       len(jobs[i].Pairs),
				SourceVocab: srcVocab,
				TargetVocab: tgtVocab,
				Duration:    out.Duration,
				Status:      internal.RunSucceeded,
			}

			if out.Err != nil {
				run.Status = internal.RunFailed
				run.Error = out.Err.Error()
				fmt.Fprintf(os.Stderr, "Training %s failed after %s: %v\n", out.Direction, out.Duration.Round(time.Millisecond), out.Err)
			} else {
				// Saving uses a fresh context so a late interrupt cannot
				// discard a model that finished training.
				if _, err := db.SaveModel(context.Background(), out.Direction, out.Model); err != nil {
					return fmt.Errorf("failed to save %s model: %w", out.Direction, err)
				}
				fmt.Printf("%s/%s: %s source words, %s translation entries, trained in %s\n",
					out.Direction, out.Model.Name(),
					humanize.Comma(int64(srcVocab)),
					humanize.Comma(int64(out.Model.Table.Len())),
					out.Duration.Round(time.Millisecond))
			}

			if _, err := db.SaveRun(context.Background(), run); err != nil {
				logger.Warn("failed to record training run", zap.String("direction", run.Direction), zap.Error(err))
			}
		}

		if result.Succeeded == 0 {
			return fmt.Errorf("all training jobs failed: %w", errors.Join(result.Errors...))
		}
		return nil
	},
}

// readCorpus loads the tokenized parallel corpus named by the flags.
func readCorpus(dir corpus.Direction, limit int) ([][]string, [][]string, error) {
	switch {
	case tmxFile != "":
		f, err := os.Open(tmxFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open TMX file: %w", err)
		}
		defer f.Close()

		opts := corpus.TMXOptions{Limit: limit}
		if verifyLang {
			opts.Verifier = detector.New(dir.From, dir.To)
		}
		source, target, stats, err := corpus.LoadTMX(f, dir.From, dir.To, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load TMX file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Read %s translation units: %s kept, %s skipped\n",
			humanize.Comma(int64(stats.Units)), humanize.Comma(int64(stats.Kept)), humanize.Comma(int64(stats.Skipped)))
		return source, target, nil

	case sourceFile != "" && targetFile != "":
		if sourceFile == targetFile {
			return nil, nil, fmt.Errorf("source file and target file cannot be the same")
		}
		src, err := os.Open(sourceFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open source file: %w", err)
		}
		defer src.Close()
		tgt, err := os.Open(targetFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open target file: %w", err)
		}
		defer tgt.Close()

		source, target, err := corpus.LoadParallel(src, tgt)
		if err != nil {
			return nil, nil, err
		}
		if limit > 0 && len(source) > limit {
			source, target = source[:limit], target[:limit]
		}
		return source, target, nil
	}
	return nil, nil, fmt.Errorf("either --tmx or both --source-file and --target-file are required")
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&tmxFile, "tmx", "", "TMX corpus file")
	trainCmd.Flags().StringVar(&sourceFile, "source-file", "", "Source sentences, one per line")
	trainCmd.Flags().StringVar(&targetFile, "target-file", "", "Target sentences, one per line")
	trainCmd.Flags().StringVarP(&trainFrom, "from", "f", "", "Source language code (e.g. fr)")
	trainCmd.Flags().StringVarP(&trainTo, "to", "t", "", "Target language code (e.g. en)")
	trainCmd.Flags().BoolVar(&verifyLang, "verify-lang", false, "Drop TMX units whose text is detected as another language")
	trainCmd.Flags().BoolVar(&bothDirections, "both", true, "Train both directions concurrently")

	trainCmd.Flags().String("variant", "lexical", "Model variant: lexical, distortion, fertility")
	trainCmd.Flags().IntP("iterations", "n", 10, "EM iterations per training stage")
	trainCmd.Flags().Int("workers", 0, "Parallel E-step workers (0 = number of CPUs)")
	trainCmd.Flags().Int("limit", 0, "Maximum sentence pairs to read (0 = all)")
	trainCmd.Flags().Float64("null-probability", 0.05, "Prior probability of aligning to NULL")
	trainCmd.Flags().Int("max-fertility", 10, "Largest fertility the fertility model considers")
	trainCmd.Flags().Int("search-steps", 50, "Hill-climbing step limit for the fertility model")
	trainCmd.Flags().Duration("timeout", 0, "Per-direction training timeout (0 = none)")

	for key, flag := range map[string]string{
		"train.variant":          "variant",
		"train.iterations":       "iterations",
		"train.workers":          "workers",
		"train.limit":            "limit",
		"train.null_probability": "null-probability",
		"train.max_fertility":    "max-fertility",
		"train.search_steps":     "search-steps",
		"train.timeout":          "timeout",
	} {
		viper.BindPFlag(key, trainCmd.Flags().Lookup(flag))
	}
}
