package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcastone/vault/internal/core/domain"
)

var addCmd = &cobra.Command{
	Use:   "add [path...]",
	Short: "Add PDF files or folders to the vault",
	Long: `Stores each PDF by content hash, extracts its text and indexes it.

Directories are walked recursively and every file recognised as a PDF is
added. Adding bytes that are already stored returns the existing document
without extracting again. One bad file never stops the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	results := ingestService.IngestPaths(cmd.Context(), args)
	if len(results) == 0 {
		cmd.Println("No PDF files found.")
		return nil
	}

	out := cmd.OutOrStdout()
	var added, known, failed int
	for _, res := range results {
		name := filepath.Base(res.Path)

		switch {
		case res.Document == nil:
			failed++
			cmd.Printf("  %s  %s: %v\n", outcomeBadge(out, false, "failed "), res.Path, res.Err)
			continue
		case res.Document.Status == domain.StatusFailed:
			failed++
			cmd.Printf("  %s  %s  %s  %s\n", outcomeBadge(out, false, "failed "), name, res.Document.ID,
				res.Document.FailReason)
			continue
		case res.Deduplicated:
			known++
			cmd.Printf("  %s  %s  %s  %s\n", outcomeBadge(out, true, "stored "), name, res.Document.ID,
				statusBadge(out, res.Document.Status))
		default:
			added++
			cmd.Printf("  %s  %s  %s  %s\n", outcomeBadge(out, true, "added  "), name, res.Document.ID,
				statusBadge(out, res.Document.Status))
		}
		if res.Err != nil {
			cmd.Printf("           %v\n", res.Err)
		}
	}

	cmd.Println()
	cmd.Printf("Added %d, already stored %d, failed %d.\n", added, known, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}
