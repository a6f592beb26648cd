package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/meta"
)

var (
	feedbackType         string
	feedbackRegex        string
	feedbackSkill        string
	feedbackConfidence   string
	feedbackModification string
	feedbackResetConfirm bool
)

func init() {
	feedbackLogCmd.Flags().StringVar(&feedbackType, "type", "correction", "pattern type that produced the proposal")
	feedbackLogCmd.Flags().StringVar(&feedbackRegex, "regex", "", "pattern regex that matched, if any")
	feedbackLogCmd.Flags().StringVar(&feedbackSkill, "skill", "general", "skill the proposal targeted")
	feedbackLogCmd.Flags().StringVar(&feedbackConfidence, "confidence", string(meta.ConfidenceMedium), "confidence level (HIGH, MEDIUM, LOW)")
	feedbackLogCmd.Flags().StringVar(&feedbackModification, "modification", "", "reviewer's modification, for modify decisions")
	feedbackResetCmd.Flags().BoolVar(&feedbackResetConfirm, "confirm", false, "actually reset the data")

	feedbackCmd.AddCommand(feedbackLogCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
	feedbackCmd.AddCommand(feedbackScoresCmd)
	feedbackCmd.AddCommand(feedbackResetCmd)
	rootCmd.AddCommand(feedbackCmd)
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record and inspect reviewer feedback on proposals",
}

// feedbackLogCmd appends one decision to the feedback log
var feedbackLogCmd = &cobra.Command{
	Use:   "log <decision> <signal-content>",
	Short: "Log a reviewer decision",
	Long: `Append one reviewer decision (accept, modify, skip, quit) to the
feedback log. Recording is passive and never fails the caller.

Examples:
  reflect feedback log accept "use uv instead of pip" --type correction --confidence HIGH
  reflect feedback log modify "run tests" --modification "run unit tests only"`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedbackLog,
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the meta-learning health report",
	RunE:  runFeedbackStats,
}

var feedbackScoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show computed pattern scores as JSON",
	RunE:  runFeedbackScores,
}

var feedbackResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset meta-learning data",
	Long: `Archive the feedback log and remove the cached pattern scores.
Does nothing without --confirm.`,
	RunE: runFeedbackReset,
}

func runFeedbackLog(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ok := a.scorer.LogFeedback(cmd.Context(), meta.FeedbackEntry{
		PatternType:     feedbackType,
		PatternRegex:    feedbackRegex,
		SkillName:       feedbackSkill,
		ConfidenceLevel: meta.ConfidenceLevel(feedbackConfidence),
		Decision:        meta.Decision(args[0]),
		SignalContent:   args[1],
		Modification:    feedbackModification,
	})
	return printJSON(map[string]bool{"logged": ok})
}

func runFeedbackStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.scorer.FormatStatisticsReport(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}

func runFeedbackScores(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scores, err := a.scorer.ComputePatternScores(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(scores)
}

func runFeedbackReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !feedbackResetConfirm {
		fmt.Println("Use --confirm to actually reset meta-learning data.")
		return nil
	}
	if !a.scorer.ResetData(cmd.Context(), true) {
		return fmt.Errorf("failed to reset meta-learning data")
	}
	fmt.Println("Meta-learning data reset.")
	return nil
}
