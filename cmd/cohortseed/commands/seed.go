package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedFile  string
	seedMax   int
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load impostor embeddings into the cohort index",
	Long: `Load impostor embeddings into the cohort index.

Every vector is L2-normalised before it is written, in batches of 100.
A populated index is left untouched unless --force is given, in which case
all existing cohort vectors are deleted and the index is recreated.

Input formats (chosen by extension):
  .jsonl, .ndjson   one {"ref": "...", "embedding": [...]} object per line;
                    ref is optional and defaults to <file>-<line index>
  .msgpack, .mpk    a map {"refs": [...], "embeddings": [[...], ...]};
                    refs is optional

Examples:
  cohortseed seed -f cohort.jsonl
  cohortseed seed -f embeddings.msgpack --max 5000 --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if seedFile == "" {
			return fmt.Errorf("input file is required, use -f flag")
		}
		ctx := cmd.Context()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		out := cmd.OutOrStdout()

		if err := s.cohort.EnsureIndex(ctx); err != nil {
			return err
		}
		existing, err := s.cohort.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cohort %s has %d vectors\n", s.cohort.IndexName(), existing)

		if existing > 0 {
			if !seedForce {
				fmt.Fprintln(out, "Already populated. Use --force to re-seed.")
				return nil
			}
			removed, err := s.cohort.Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d vectors (--force)\n", removed)
		}

		loaded, err := loadEntries(seedFile, s.cfg.Verification.EmbeddingDim, seedMax)
		if err != nil {
			return err
		}
		if loaded.Skipped > 0 {
			s.logger.Warn("skipped invalid cohort vectors",
				zap.Int("skipped", loaded.Skipped),
				zap.String("first_error", loaded.FirstErr.Error()),
			)
		}
		if len(loaded.Entries) == 0 {
			return fmt.Errorf("no valid vectors in %s", seedFile)
		}

		written, err := s.cohort.Seed(ctx, loaded.Entries)
		if err != nil {
			return fmt.Errorf("seed failed after %d vectors: %w", written, err)
		}

		total, err := s.cohort.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Done. Cohort now has %d vectors (added %d, skipped %d).\n",
			total, written, loaded.Skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "cohort file (.jsonl or .msgpack)")
	seedCmd.Flags().IntVar(&seedMax, "max", 0, "maximum vectors to load (0 = all)")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "re-seed even if the cohort is populated")
	rootCmd.AddCommand(seedCmd)
}
