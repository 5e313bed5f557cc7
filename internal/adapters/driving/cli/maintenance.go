package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcastone/vault/internal/core/domain"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Snapshot the catalog and compact the transaction log",
	Args:  cobra.NoArgs,
	RunE:  runCheckpoint,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-hash every stored document",
	Long: `Reads every blob the catalog references and checks its hash.
Missing and corrupt blobs are reported; nothing is repaired.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the search index from the catalog",
	Long: `Drops the search index and re-embeds every extracted or indexed
document. Use this after changing the embedding provider or when the
index file is lost.`,
	Args: cobra.NoArgs,
	RunE: runRebuildIndex,
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete stored bytes no document references",
	Long: `Removes blobs left behind by removed documents and compacts the
search index. Do not run while another process is adding files.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

var bundleCmd = &cobra.Command{
	Use:   "bundle [destination]",
	Short: "Copy the whole vault to a new directory",
	Long: `Checkpoints, then copies the vault root to an empty or new directory.
The copy is a complete vault: point --root at it to use it.`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise vault contents",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rebuildIndexCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(statsCmd)
}

func runCheckpoint(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	if err := maintenanceService.Checkpoint(cmd.Context()); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	cmd.Println("Checkpoint written.")
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	report, err := maintenanceService.Verify(cmd.Context())
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, issue := range report.Missing {
		cmd.Printf("  %s  %s (%s): %s\n", outcomeBadge(out, false, "missing"), issue.Filename, issue.DocumentID, issue.Hash)
	}
	for _, issue := range report.Corrupt {
		cmd.Printf("  %s  %s (%s): %s\n", outcomeBadge(out, false, "corrupt"), issue.Filename, issue.DocumentID, issue.Error)
	}

	if report.Healthy() {
		cmd.Printf("All %d documents verified.\n", report.Checked)
		return nil
	}
	cmd.Printf("Checked %d documents: %d missing, %d corrupt.\n", report.Checked, len(report.Missing), len(report.Corrupt))
	return fmt.Errorf("%w: %d blobs failed verification", domain.ErrCorrupt, len(report.Missing)+len(report.Corrupt))
}

func runRebuildIndex(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	report, err := maintenanceService.RebuildIndex(cmd.Context())
	if report != nil {
		cmd.Printf("Rebuilt index: %d documents, %d of %d chunks embedded, %d documents failed.\n",
			report.Documents, report.Embedded, report.Chunks, report.Failed)
	}
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	return nil
}

func runGC(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	report, err := maintenanceService.GC(cmd.Context())
	if err != nil {
		return fmt.Errorf("gc failed: %w", err)
	}
	cmd.Printf("Scanned %d blobs, removed %d (%d bytes).\n", report.Scanned, report.Removed, report.Bytes)
	return nil
}

func runBundle(cmd *cobra.Command, args []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	if err := maintenanceService.Bundle(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("bundle failed: %w", err)
	}
	cmd.Printf("Vault bundled to %s\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	stats, err := maintenanceService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Documents:      %d\n", stats.Documents)
	for _, s := range []domain.Status{
		domain.StatusIndexed, domain.StatusExtracted, domain.StatusPending, domain.StatusFailed,
	} {
		cmd.Printf("  %-12s  %d\n", s, stats.ByStatus[s])
	}
	cmd.Printf("Chunks:         %d\n", stats.Chunks)
	cmd.Printf("Index entries:  %d\n", stats.IndexEntries)
	cmd.Printf("Blobs:          %d (%d bytes)\n", stats.Blobs, stats.BlobBytes)
	cmd.Printf("Log sequence:   %d\n", stats.LastSeq)
	return nil
}
