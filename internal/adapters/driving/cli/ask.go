package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcastone/vault/internal/core/domain"
)

var (
	askTopK     int
	askRetrieve bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your documents",
	Long: `Finds the most relevant passages and answers from them, citing pages.

When an LLM provider is configured and reachable it writes the answer;
otherwise the relevant passages are returned as an extractive summary.
Use --retrieve to get quoted passages only.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 5, "number of passages to use")
	askCmd.Flags().BoolVar(&askRetrieve, "retrieve", false, "return quoted passages without generating")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	var (
		answer *domain.Answer
		err    error
	)
	if askRetrieve {
		answer, err = answerService.Retrieve(cmd.Context(), args[0], askTopK)
	} else {
		answer, err = answerService.Ask(cmd.Context(), args[0], askTopK)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	if answer.Generated && len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range answer.Sources {
			cmd.Printf("  - %s\n", c)
		}
	}
	return nil
}
