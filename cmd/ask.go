package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"pharmabot/internal/logger"
	"pharmabot/internal/prescription"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask Pharmabot a question",
	Long: `Forward a free-form question to the model and print the answer.
Every question is sent on its own; earlier questions are not remembered.`,
	Example: `  pharmabot ask "Can I take ibuprofen with amoxicillin?"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Duration("timeout", time.Minute, "Request timeout")
}

func runAsk(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ask")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return prescription.ErrEmptyQuestion
	}

	completer, err := createCompletionClient(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	answer, err := prescription.NewAnalyzer(nil, completer).Ask(ctx, question)
	if err != nil {
		return handleAnalysisError(err, log)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "You: %s\nPharmabot: %s\n", question, answer)
	return nil
}
