package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

var (
	tableFlag string
	jsonFlag  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs <runId>",
	Short: "List the recorded stages of a pipeline run",
	Args:  cobra.ExactArgs(1),
	RunE:  listRun,
}

func init() {
	runsCmd.Flags().StringVar(&tableFlag, "table", logging.EnvOrDefault(lambdaboot.RunsTableEnv, ""), "Run ledger DynamoDB table")
	runsCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print records as JSON")
}

func listRun(cmd *cobra.Command, args []string) error {
	if tableFlag == "" {
		return fmt.Errorf("%w: --table or %s", config.ErrMissing, lambdaboot.RunsTableEnv)
	}
	ctx := cmd.Context()
	ledger := store.NewRunStore(dynamodb.NewFromConfig(awsConfig(ctx)), tableFlag)
	records, err := ledger.ListStages(ctx, args[0])
	if err != nil {
		return fmt.Errorf("%s", cli.DescribeAWSError(err))
	}
	if jsonFlag {
		return cli.PrintJSON(cmd.OutOrStdout(), records)
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No stages recorded for run %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tFINISHED\tTOOK\tDETAIL")
	for _, r := range records {
		took := ""
		if !r.StartedAt.IsZero() {
			took = cli.FormatDurationShort(r.FinishedAt.Sub(r.StartedAt))
		}
		detail := r.Detail
		if detail == "" {
			detail = r.TrackingHandle
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Stage, r.Status, r.FinishedAt.Local().Format(time.DateTime), took, detail)
	}
	return w.Flush()
}
