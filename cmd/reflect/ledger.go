package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/ledger"
)

var (
	recordType       string
	recordSkill      string
	recordConfidence float64
	searchLimit      int
)

func init() {
	recordCmd.Flags().StringVar(&recordType, "type", string(ledger.TypeCorrection), "learning type (correction, approval, question, explicit)")
	recordCmd.Flags().StringVar(&recordSkill, "skill", "general", "skill the learning belongs to")
	recordCmd.Flags().Float64Var(&recordConfidence, "confidence", 0.5, "extraction confidence in [0,1]")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(checkCmd)
}

// recordCmd records one learning occurrence from this repository
var recordCmd = &cobra.Command{
	Use:   "record <content>",
	Short: "Record a learning in the ledger",
	Long: `Record one occurrence of a learning from the current repository.

The content is fingerprinted; recording the same advice again (even with
different casing or whitespace) updates the existing entry instead of
creating a duplicate.

Examples:
  # Record a correction
  reflect record "use uv instead of pip" --skill python

  # Record an explicit instruction with high confidence
  reflect record "always run tests before committing" --type explicit --confidence 0.9`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger statistics",
	RunE:  runStats,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List learnings eligible for promotion",
	Long: `List unpromoted learnings seen in enough distinct repositories to
qualify for promotion at the configured threshold.`,
	RunE: runCandidates,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search learnings by content substring",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var checkCmd = &cobra.Command{
	Use:   "check <fingerprint>",
	Short: "Check promotion eligibility for a fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runRecord(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.store.RecordLearning(cmd.Context(), args[0],
		ledger.LearningType(recordType), recordSkill, recordConfidence)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runCandidates(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.store.GetPromotionCandidates(cmd.Context(), a.cfg.Promotion.Threshold)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("No learnings ready for promotion.")
		fmt.Printf("Learnings become eligible when seen in %d+ repositories.\n", a.cfg.Promotion.Threshold)
		return nil
	}
	return printJSON(candidates)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.store.Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	elig, err := a.store.CheckPromotionEligibility(cmd.Context(), args[0], a.cfg.Promotion.Threshold)
	if err != nil {
		return err
	}
	return printJSON(elig)
}
