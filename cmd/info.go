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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/wordalign/internal/ttable"
)

var (
	infoDirection string
	infoVariant   string
	infoTop       int
)

var infoCmd = &cobra.Command{
	Use:   "info <word>",
	Short: "Show the most probable translations of a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if infoVariant == "" {
			infoVariant = cfg.Decode.Variant
		}
		dir, variant, err := resolveModel(infoDirection, infoVariant)
		if err != nil {
			return err
		}

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		engine, err := loadEngine(context.Background(), db, dir, variant, cfg.Decode.decoderConfig())
		if err != nil {
			return err
		}

		shares, err := engine.Lookup(dir, args[0], infoTop)
		if err != nil {
			return err
		}
		if len(shares) == 0 {
			fmt.Printf("No translations for %q in %s/%s.\n", args[0], dir, variant.ModelName())
			return nil
		}

		fmt.Printf("Translations of %q (%s, %s):\n", args[0], dir, variant.ModelName())
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tPROBABILITY\tSHARE")
		for _, s := range shares {
			target := s.Target
			if target == ttable.Null {
				target = "(none)"
			}
			fmt.Fprintf(w, "%s\t%.4f\t%.1f%%\n", target, s.Probability, s.Percent)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVarP(&infoDirection, "direction", "d", "fr_to_en", "Translation direction, e.g. fr_to_en")
	infoCmd.Flags().IntVar(&infoTop, "top", 10, "Number of candidates to show")
	infoCmd.Flags().StringVar(&infoVariant, "variant", "", "Model variant (default decode.variant from config)")
}
