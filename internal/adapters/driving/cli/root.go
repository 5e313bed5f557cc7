// Package cli implements the arcastone command line.
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// EnvRoot overrides the default vault root.
const EnvRoot = "ARCASTONE_ROOT"

// version is set at build time with -ldflags.
var version = "dev"

// Services wired into the commands.
var (
	ingestService      driving.IngestService
	searchService      driving.SearchService
	answerService      driving.AnswerService
	documentService    driving.DocumentService
	exportService      driving.ExportService
	maintenanceService driving.MaintenanceService
	settingsService    driving.SettingsService
)

// OpenMode says how much of the vault a command needs.
type OpenMode int

const (
	// OpenFull recovers the manifest and wires every service.
	OpenFull OpenMode = iota

	// OpenSettings only loads the config store.
	OpenSettings
)

// Services is everything an Opener hands to the commands.
type Services struct {
	Ingest      driving.IngestService
	Search      driving.SearchService
	Answer      driving.AnswerService
	Document    driving.DocumentService
	Export      driving.ExportService
	Maintenance driving.MaintenanceService
	Settings    driving.SettingsService

	// Warnings are non-fatal problems found while opening.
	Warnings []string

	// Close releases the vault.
	Close func() error
}

// Opener opens the vault at root.
type Opener func(ctx context.Context, root string, mode OpenMode) (*Services, error)

var (
	opener  Opener
	opened  *Services
	rootDir string
	verbose bool
)

// annotationOpen marks how a command opens the vault.
const annotationOpen = "arcastone/open"

const (
	openNone     = "none"
	openSettings = "settings"
)

var rootCmd = &cobra.Command{
	Use:   "arcastone",
	Short: "Offline PDF vault with semantic search",
	Long: `arcastone keeps your PDFs in a local, content-addressed vault.

Files are stored by hash, their text is extracted and embedded, and
everything can be searched, questioned and exported without a network
connection. The whole vault lives under one directory that can be
copied as a unit.`,
	SilenceUsage:      true,
	PersistentPreRunE: openVault,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "",
		"vault root directory (default $"+EnvRoot+" or ~/.arcastone)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// Execute runs the root command and closes the vault afterwards, whether
// or not the command succeeded.
func Execute() error {
	err := rootCmd.Execute()
	if closeErr := closeVault(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetOpener installs the function that opens the vault before a command runs.
func SetOpener(fn Opener) {
	opener = fn
}

// SetServices wires services directly, bypassing the opener.
func SetServices(s *Services) {
	ingestService = s.Ingest
	searchService = s.Search
	answerService = s.Answer
	documentService = s.Document
	exportService = s.Export
	maintenanceService = s.Maintenance
	settingsService = s.Settings
}

// VaultRoot resolves the vault root from the flag, the environment, or the
// home directory, in that order.
func VaultRoot() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	if env := os.Getenv(EnvRoot); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("cannot determine home directory; pass --root")
	}
	return filepath.Join(home, ".arcastone"), nil
}

func openVault(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
		return nil
	}

	mode := OpenFull
	switch cmd.Annotations[annotationOpen] {
	case openNone:
		return nil
	case openSettings:
		mode = OpenSettings
	}
	if opener == nil {
		return nil
	}

	root, err := VaultRoot()
	if err != nil {
		return err
	}
	logger.Debug("vault root: %s", root)

	svc, err := opener(cmd.Context(), root, mode)
	if err != nil {
		return err
	}
	for _, w := range svc.Warnings {
		logger.Warn("%s", w)
	}
	SetServices(svc)
	opened = svc
	return nil
}

func closeVault() error {
	if opened == nil || opened.Close == nil {
		return nil
	}
	err := opened.Close()
	opened = nil
	return err
}
