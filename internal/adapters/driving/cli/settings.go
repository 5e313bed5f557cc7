package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in config.toml under the vault root.

Keys are dotted, for example embedding.provider or ingest.workers.
API keys fall back to OPENAI_API_KEY and ANTHROPIC_API_KEY.`,
	Annotations: map[string]string{annotationOpen: openSettings},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationOpen: openSettings},
	RunE:        runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:         "get [key]",
	Short:       "Print one setting",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationOpen: openSettings},
	RunE:        runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Validates and stores one setting. The previous value is kept when
the new one is rejected. Omit the value of an API key to be prompted for
it without echo.`,
	Args:        cobra.RangeArgs(1, 2),
	Annotations: map[string]string{annotationOpen: openSettings},
	RunE:        runSettingsSet,
}

var settingsCheckCmd = &cobra.Command{
	Use:         "check",
	Short:       "Test connections to the configured AI providers",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationOpen: openSettings},
	RunE:        runSettingsCheck,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")

	section := ""
	for _, key := range settingsService.Keys() {
		prefix, name, _ := strings.Cut(key, ".")
		if prefix != section {
			section = prefix
			cmd.Println()
			cmd.Printf("[%s]\n", section)
		}

		v, err := settingsService.Value(key)
		if err != nil {
			return err
		}
		if v == "" {
			v = "(not set)"
		}
		cmd.Printf("  %-24s %s\n", name, v)
	}
	cmd.Println()

	status := func(ok bool) string {
		if ok {
			return "configured"
		}
		return "not configured"
	}
	cmd.Printf("Embedding: %s (%s)\n", settings.Embedding.Provider.Description(), status(settings.Embedding.IsConfigured()))
	cmd.Printf("LLM:       %s (%s)\n", settings.LLM.Provider.Description(), status(settings.LLM.IsConfigured()))
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	v, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(v)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case settingsService.IsSecret(key):
		cmd.Printf("Enter %s: ", key)
		value = readPassword(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown, err := settingsService.Value(key)
	if err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	embedErr, llmErr := settingsService.CheckProviders()

	out := cmd.OutOrStdout()
	report := func(name string, err error) {
		if err != nil {
			cmd.Printf("  %-10s %s %v\n", name, outcomeBadge(out, false, "FAILED"), err)
			return
		}
		cmd.Printf("  %-10s %s\n", name, outcomeBadge(out, true, "OK"))
	}
	report("embedding", embedErr)
	report("llm", llmErr)

	if embedErr != nil || llmErr != nil {
		return errors.New("provider check failed")
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	// Try to read password without echo
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
