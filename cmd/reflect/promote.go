package main

import (
	"github.com/spf13/cobra"
)

var promoteDryRun bool

func init() {
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "show what would be promoted without changing anything")
	promoteAllCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "show what would be promoted without changing anything")

	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(promoteAllCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview <fingerprint>",
	Short: "Preview the entry a promotion would append",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

// promoteCmd promotes one learning to the global knowledge file
var promoteCmd = &cobra.Command{
	Use:   "promote <fingerprint>",
	Short: "Promote a learning to the global knowledge file",
	Long: `Append an eligible learning to the global knowledge file and mark it
promoted in the ledger. The current global file is backed up first.

Examples:
  reflect promote a1b2c3d4e5f60718
  reflect promote a1b2c3d4e5f60718 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

var promoteAllCmd = &cobra.Command{
	Use:   "promote-all",
	Short: "Promote every endorsed candidate",
	Long: `Promote every candidate the scope analyzer endorses for global scope.
A failing candidate is reported and the batch continues.`,
	RunE: runPromoteAll,
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	preview, err := a.promoter.PreviewPromotion(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(preview)
}

func runPromote(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.promoter.Promote(cmd.Context(), args[0], promoteDryRun)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPromoteAll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.promoter.PromoteAll(cmd.Context(), promoteDryRun)
	if err != nil {
		return err
	}
	return printJSON(batch)
}
