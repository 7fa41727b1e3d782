package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report the cohort index size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		ready, err := s.cohort.IndexReady(ctx)
		if err != nil {
			return err
		}
		n, err := s.cohort.Count(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "index:     %s\n", s.cohort.IndexName())
		fmt.Fprintf(out, "exists:    %t\n", ready)
		fmt.Fprintf(out, "vectors:   %d\n", n)
		fmt.Fprintf(out, "dimension: %d\n", s.cfg.Verification.EmbeddingDim)
		if n < s.cfg.Verification.MinCohortSize {
			fmt.Fprintf(out, "warning:   fewer than %d vectors, scores will be flagged low-confidence\n",
				s.cfg.Verification.MinCohortSize)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
