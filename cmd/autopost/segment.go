package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
	"github.com/ryan-longoria/socialmedia-automation/internal/titles"
)

var candidatesFlag []string

var segmentCmd = &cobra.Command{
	Use:   "segment [headline]",
	Short: "Split a headline into title and description offline",
	Long: `Segment runs the headline splitter and title reconciler locally, without
AWS. Pass canonical titles with --candidate to see which one wins. Without a
headline argument it prompts for one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: segmentHeadline,
}

func init() {
	segmentCmd.Flags().StringArrayVarP(&candidatesFlag, "candidate", "c", nil, "Canonical title to reconcile against (repeatable)")
}

func segmentHeadline(cmd *cobra.Command, args []string) error {
	headline := ""
	if len(args) == 1 {
		headline = args[0]
	} else {
		headline = cli.PromptForHeadline()
	}
	if headline == "" {
		return fmt.Errorf("no headline given")
	}
	candidates := candidatesFlag
	if len(candidates) == 0 {
		candidates = []string{headline}
	}
	return cli.PrintJSON(cmd.OutOrStdout(), titles.Default.Segment(headline, candidates))
}
