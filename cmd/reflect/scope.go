package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeSkill string

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSkill, "skill", "general", "skill the learning belongs to")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(suggestCmd)
}

// analyzeCmd runs scope analysis without touching the ledger
var analyzeCmd = &cobra.Command{
	Use:   "analyze <content>",
	Short: "Analyze whether a learning is project- or globally-scoped",
	Long: `Score the learning content against project and global indicators and
combine the result with cross-repository evidence from the ledger.

Examples:
  reflect analyze "run tests before every commit"
  reflect analyze "use pnpm -C packages/web" --skill frontend`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "List promotion suggestions",
	Long: `List ledger candidates that the scope analyzer also recommends for
global scope.`,
	RunE: runSuggest,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.analyzer.Analyze(cmd.Context(), args[0], analyzeSkill))
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	suggestions, err := a.analyzer.PromotionSuggestions(cmd.Context())
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Println("No promotion suggestions found.")
		return nil
	}
	return printJSON(suggestions)
}
