package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arcastone/vault/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage stored documents",
	Long:    `List, view, remove, or retry documents in the vault.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print extracted text page by page",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove document from the vault",
	Long: `Removes the document from the catalog and the search index.
Its stored bytes stay until the next gc.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentRemove,
}

var documentRetryCmd = &cobra.Command{
	Use:   "retry [doc-id]",
	Short: "Run a failed document through ingestion again",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRetry,
}

// Flags for the list command.
var (
	listStatus string
	listFormat string
)

// documentRow is the listing shape shared by the json and yaml formats.
type documentRow struct {
	ID         string    `json:"id" yaml:"id"`
	Filename   string    `json:"filename" yaml:"filename"`
	Status     string    `json:"status" yaml:"status"`
	Pages      int       `json:"pages" yaml:"pages"`
	Size       int64     `json:"size" yaml:"size"`
	Hash       string    `json:"hash" yaml:"hash"`
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
	FailReason string    `json:"fail_reason,omitempty" yaml:"fail_reason,omitempty"`
}

func init() {
	documentListCmd.Flags().StringVarP(&listStatus, "status", "s", "", "only show documents in this state")
	documentListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format: table, json or yaml")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	documentCmd.AddCommand(documentRetryCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	var (
		docs []domain.Document
		err  error
	)
	if listStatus != "" {
		docs, err = documentService.ListByStatus(cmd.Context(), domain.Status(listStatus))
	} else {
		docs, err = documentService.List(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	rows := make([]documentRow, len(docs))
	for i := range docs {
		rows[i] = documentRow{
			ID:         docs[i].ID,
			Filename:   docs[i].Filename,
			Status:     docs[i].Status.String(),
			Pages:      docs[i].PageCount,
			Size:       docs[i].Blob.Size,
			Hash:       docs[i].Blob.Hash,
			IngestedAt: docs[i].IngestedAt,
			FailReason: docs[i].FailReason,
		}
	}

	switch listFormat {
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil

	case "yaml":
		data, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Print(string(data))
		return nil

	case "table", "":
	default:
		return fmt.Errorf("unknown format %q: %w", listFormat, domain.ErrInvalidInput)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	out := cmd.OutOrStdout()
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "STATUS", "PAGES", "FILE")
	for i := range docs {
		t.Row(docs[i].ID, statusBadge(out, docs[i].Status), strconv.Itoa(docs[i].PageCount), docs[i].Title())
	}
	cmd.Println(t.Render())
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	entry, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	doc := entry.Document

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  File:      %s\n", doc.Filename)
	cmd.Printf("  Status:    %s\n", statusBadge(cmd.OutOrStdout(), doc.Status))
	if doc.FailReason != "" {
		cmd.Printf("  Reason:    %s\n", doc.FailReason)
	}
	cmd.Printf("  Hash:      %s\n", doc.Blob.Hash)
	cmd.Printf("  Size:      %d bytes\n", doc.Blob.Size)
	cmd.Printf("  Pages:     %d\n", doc.PageCount)
	cmd.Printf("  Chunks:    %d (%d embedded)\n", len(entry.Chunks), len(entry.Embedded))
	cmd.Printf("  Ingested:  %s\n", doc.IngestedAt.Format("2006-01-02 15:04:05"))

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	content, err := documentService.GetContent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Document %s removed. Run gc to reclaim its storage.\n", args[0])
	return nil
}

func runDocumentRetry(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	cmd.Printf("Retrying document %s...\n", args[0])

	doc, err := ingestService.Retry(cmd.Context(), args[0])
	if doc != nil {
		cmd.Printf("Document %s is now %s.\n", doc.ID, statusBadge(cmd.OutOrStdout(), doc.Status))
	}
	if err != nil {
		return fmt.Errorf("failed to retry document: %w", err)
	}
	return nil
}
