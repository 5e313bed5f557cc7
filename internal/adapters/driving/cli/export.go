package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportTo  string
	exportAll bool
)

var exportCmd = &cobra.Command{
	Use:   "export [doc-id...]",
	Short: "Copy documents out of the vault",
	Long: `Writes each document's original bytes to the destination directory
under its original filename. Existing files are never overwritten: a
clash becomes name_1.pdf, name_2.pdf and so on. Each document reports its
own result; one failure never stops the others.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if exportAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportTo, "to", "o", "", "destination directory")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every document")
	_ = exportCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportService == nil {
		return errors.New("export service not configured")
	}

	ids := args
	if exportAll {
		if documentService == nil {
			return errors.New("document service not configured")
		}
		docs, err := documentService.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		ids = make([]string, len(docs))
		for i := range docs {
			ids[i] = docs[i].ID
		}
		if len(ids) == 0 {
			cmd.Println("No documents to export.")
			return nil
		}
	}

	results := exportService.Export(cmd.Context(), ids, exportTo)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.OK() {
			cmd.Printf("  %s  %s -> %s\n", outcomeBadge(out, true, "ok          "), r.DocumentID, r.Path)
			continue
		}
		failed++
		cmd.Printf("  %s  %s: %s\n", outcomeBadge(out, false, fmt.Sprintf("%-12s", r.Status)), r.DocumentID, r.Error)
	}

	cmd.Println()
	cmd.Printf("Exported %d of %d documents to %s\n", len(results)-failed, len(results), exportTo)
	if failed > 0 {
		return fmt.Errorf("%d documents could not be exported", failed)
	}
	return nil
}
