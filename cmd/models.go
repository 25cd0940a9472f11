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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var runsLimit int

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage trained models",
	Long:  `List and delete trained models and inspect the training history.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all trained models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		models, err := db.ListModels(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}

		if len(models) == 0 {
			fmt.Println("No trained models.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DIRECTION\tVARIANT\tITERATIONS\tPAIRS\tWORDS\tENTRIES\tTRAINED")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				m.Direction, m.Variant, m.Iterations,
				humanize.Comma(int64(m.Pairs)),
				humanize.Comma(int64(m.Sources)),
				humanize.Comma(int64(m.Entries)),
				humanize.Time(m.CreatedAt))
		}
		return w.Flush()
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <direction> <variant>",
	Short: "Delete a trained model, e.g. delete fr_to_en distortion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		dir, variant, err := resolveModel(args[0], args[1])
		if err != nil {
			return err
		}

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteModel(context.Background(), dir, variant); err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}
		fmt.Printf("Deleted model: %s/%s\n", dir, variant.ModelName())
		return nil
	},
}

var modelsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent training runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := openStore(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list training runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No training runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tDIRECTION\tVARIANT\tPAIRS\tVOCAB\tDURATION\tSTATUS")
		for _, r := range runs {
			status := r.Status
			if r.Error != "" {
				status += ": " + r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s/%s\t%s\t%s\n",
				humanize.Time(r.Timestamp), r.Direction, r.Variant,
				humanize.Comma(int64(r.Pairs)),
				humanize.Comma(int64(r.SourceVocab)), humanize.Comma(int64(r.TargetVocab)),
				r.Duration.Round(time.Millisecond), status)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to show (0 = all)")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsCmd.AddCommand(modelsRunsCmd)
}
