package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
)

var (
	sinceFlag  time.Duration
	filterFlag string
	limitFlag  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <stage>",
	Short: "Print recent log events of a stage Lambda",
	Args:  cobra.ExactArgs(1),
	RunE:  stageLogs,
}

func init() {
	logsCmd.Flags().DurationVar(&sinceFlag, "since", 30*time.Minute, "How far back to look")
	logsCmd.Flags().StringVar(&filterFlag, "filter", "", "CloudWatch Logs filter pattern")
	logsCmd.Flags().IntVar(&limitFlag, "limit", 200, "Maximum number of events to print")
}

// logGroup is the log group Lambda writes to for a function name or ARN.
func logGroup(function string) string {
	if strings.HasPrefix(function, "arn:") {
		parts := strings.Split(function, ":")
		if len(parts) >= 7 {
			function = parts[6]
		}
	}
	return "/aws/lambda/" + function
}

func stageLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := cloudwatchlogs.NewFromConfig(awsConfig(ctx))
	group := logGroup(cli.ResolveFunction(args[0], prefixFlag))

	in := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(group),
		StartTime:    aws.Int64(time.Now().Add(-sinceFlag).UnixMilli()),
	}
	if filterFlag != "" {
		in.FilterPattern = aws.String(filterFlag)
	}

	printed := 0
	p := cloudwatchlogs.NewFilterLogEventsPaginator(client, in)
	for p.HasMorePages() && printed < limitFlag {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("FilterLogEvents %s: %s", group, cli.DescribeAWSError(err))
		}
		for _, ev := range page.Events {
			if printed >= limitFlag {
				break
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n",
				cli.FormatEventTime(aws.ToInt64(ev.Timestamp)),
				strings.TrimRight(aws.ToString(ev.Message), "\n"))
			printed++
		}
	}
	if printed == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No events in %s for the last %s\n", group, cli.FormatDurationShort(sinceFlag))
	}
	return nil
}
