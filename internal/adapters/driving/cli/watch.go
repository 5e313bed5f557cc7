package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcastone/vault/internal/adapters/driving/watch"
	"github.com/arcastone/vault/internal/core/domain"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [inbox]",
	Short: "Add PDFs as they are dropped into a folder",
	Long: `Adds every PDF already in the inbox, then keeps watching it and adds
new files once they stop changing. The default inbox is <root>/inbox.
Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce,
		"how long a file must be unchanged before it is added")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dir, err := inboxDir(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printResult := func(res domain.IngestResult) {
		out := cmd.OutOrStdout()
		name := filepath.Base(res.Path)
		if res.Document == nil {
			cmd.Printf("  %s  %s: %v\n", outcomeBadge(out, false, "failed"), name, res.Err)
			return
		}
		label := "added "
		if res.Deduplicated {
			label = "stored"
		}
		cmd.Printf("  %s  %s  %s  %s\n", outcomeBadge(out, res.Document.Status != domain.StatusFailed, label),
			name, res.Document.ID, statusBadge(out, res.Document.Status))
	}

	for _, res := range ingestService.IngestPaths(ctx, []string{dir}) {
		printResult(res)
	}

	w := watch.New(dir, ingestService, watch.WithDebounce(watchDebounce))
	defer w.Close()

	results, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s (Ctrl-C to stop)\n", dir)

	for res := range results {
		printResult(res)
	}
	return nil
}

// inboxDir returns the explicit inbox argument or <root>/inbox.
func inboxDir(args []string) (string, error) {
	if len(args) == 1 {
		return filepath.Abs(args[0])
	}
	root, err := VaultRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "inbox"), nil
}
