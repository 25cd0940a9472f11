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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/wordalign/internal/chunker"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/decoder"
)

var (
	inputFile  string
	outputFile string
	direction  string
)

var translateCmd = &cobra.Command{
	Use:   "translate [sentence]",
	Short: "Translate text word by word with a trained model",
	Long: `Translate a sentence, or a whole file with --input, using the
translation table of a trained model.

Strategies:
  - word_by_word    best filtered candidate, unknown words shown as [word]
  - conservative    only confident translations, otherwise the word itself
  - probabilistic   best of the top-k candidates above a threshold

Files are translated paragraph by paragraph, one sentence at a time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if len(args) == 0 && inputFile == "" {
			return fmt.Errorf("a sentence argument or --input is required")
		}
		if inputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		dir, variant, err := resolveModel(direction, cfg.Decode.Variant)
		if err != nil {
			return err
		}
		strategy, err := decoder.ParseStrategy(cfg.Decode.Strategy)
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

		if len(args) == 1 {
			res, err := engine.Translate(args[0], dir, strategy)
			if err != nil {
				return err
			}
			fmt.Println(res.Text)
			if res.UsedFallback {
				fmt.Fprintln(os.Stderr, "Some words had no acceptable translation")
			}
			return nil
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		text, fallbacks, err := translateDocument(engine, string(data), dir, strategy)
		if err != nil {
			return err
		}
		if err := writeOutput(outputFile, text); err != nil {
			return err
		}
		if outputFile != "" {
			fmt.Printf("Successfully translated %s (%s, %s)\n", dir, variant.ModelName(), strategy)
		}
		if fallbacks > 0 {
			fmt.Fprintf(os.Stderr, "%d sentence(s) used fallback output\n", fallbacks)
		}
		return nil
	},
}

// translateDocument keeps the paragraph structure of text and translates
// each sentence independently.
func translateDocument(engine *decoder.Engine, text string, dir corpus.Direction, strategy decoder.Strategy) (string, int, error) {
	var b strings.Builder
	fallbacks := 0
	for i, para := range chunker.Paragraphs(text) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		for j, sentence := range chunker.Sentences(para) {
			res, err := engine.Translate(sentence, dir, strategy)
			if err != nil {
				return "", 0, err
			}
			if res.UsedFallback {
				fallbacks++
			}
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(res.Text)
		}
	}
	b.WriteByte('\n')
	return b.String(), fallbacks, nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	translateCmd.Flags().StringVarP(&direction, "direction", "d", "fr_to_en", "Translation direction, e.g. fr_to_en")
	translateCmd.Flags().String("variant", "lexical", "Model variant: lexical, distortion, fertility")
	translateCmd.Flags().StringP("strategy", "s", string(decoder.WordByWord), "Decoding strategy: word_by_word, conservative, probabilistic")
	translateCmd.Flags().Int("top-k", 3, "Candidates considered by the probabilistic strategy")

	viper.BindPFlag("decode.variant", translateCmd.Flags().Lookup("variant"))
	viper.BindPFlag("decode.strategy", translateCmd.Flags().Lookup("strategy"))
	viper.BindPFlag("decode.top_k", translateCmd.Flags().Lookup("top-k"))
}
