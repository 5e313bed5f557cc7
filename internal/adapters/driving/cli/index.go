package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed documents that are not fully indexed",
	Long: `Resumes every document left pending or extracted, for example after
the embedding provider was unavailable during add.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	n, err := ingestService.IndexPending(cmd.Context())
	cmd.Printf("Indexed %d documents.\n", n)
	if err != nil {
		return fmt.Errorf("some documents were not indexed: %w", err)
	}
	return nil
}
