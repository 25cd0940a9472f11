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
	"math/rand"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/wordalign/internal/auditor"
	"github.com/valpere/wordalign/internal/decoder"
	"github.com/valpere/wordalign/internal/report"
	"github.com/valpere/wordalign/internal/store"
)

var (
	auditDirection string
	auditOutput    string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Sample a trained model and report suspicious translations",
	Long: `Draw a random sample of source words from a trained model and classify
the best translation of each as good or suspicious (too long, forbidden
symbols, unexpected digits, or a very low probability).

Use --seed for a reproducible sample and --format markdown|html for a
report that can be shared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		dir, variant, err := resolveModel(auditDirection, cfg.Audit.Variant)
		if err != nil {
			return err
		}

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := db.LoadModel(context.Background(), dir, variant)
		if errors.Is(err, store.ErrModelNotFound) {
			return fmt.Errorf("%w: no %s model for %s", decoder.ErrModelNotLoaded, variant.ModelName(), dir)
		}
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}

		opts := auditor.Options{
			SampleSize: cfg.Audit.SampleSize,
			Filter:     cfg.Decode.decoderConfig().Filter,
			Floor:      cfg.Audit.Floor,
		}
		if cfg.Audit.Seed != 0 {
			opts.Rand = rand.New(rand.NewSource(cfg.Audit.Seed))
		}

		rep := auditor.Audit(m.Table, opts)
		out, err := report.Render(report.Format(cfg.Audit.Format), dir.String()+"/"+m.Name(), rep)
		if err != nil {
			return err
		}
		return writeOutput(auditOutput, out)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVarP(&auditDirection, "direction", "d", "fr_to_en", "Translation direction, e.g. fr_to_en")
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "Write the report to a file (default stdout)")
	auditCmd.Flags().String("variant", "lexical", "Model variant: lexical, distortion, fertility")
	auditCmd.Flags().Int("sample", auditor.DefaultSampleSize, "Number of source words to sample")
	auditCmd.Flags().Int64("seed", 0, "Random seed for sampling (0 = time based)")
	auditCmd.Flags().String("format", "text", "Report format: text, markdown, html")

	viper.BindPFlag("audit.variant", auditCmd.Flags().Lookup("variant"))
	viper.BindPFlag("audit.sample_size", auditCmd.Flags().Lookup("sample"))
	viper.BindPFlag("audit.seed", auditCmd.Flags().Lookup("seed"))
	viper.BindPFlag("audit.format", auditCmd.Flags().Lookup("format"))
}
