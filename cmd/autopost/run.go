package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/poll"
)

var (
	stateMachineFlag string
	runIDFlag        string
	waitFlag         bool
	waitTimeoutFlag  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a pipeline execution with a fresh run ID",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&stateMachineFlag, "state-machine", logging.EnvOrDefault("PIPELINE_STATE_MACHINE_ARN", ""), "Step Functions state machine ARN")
	runCmd.Flags().StringVar(&runIDFlag, "run-id", "", "Run ID to use (default: a new UUID)")
	runCmd.Flags().BoolVar(&waitFlag, "wait", false, "Wait for the execution to finish")
	runCmd.Flags().DurationVar(&waitTimeoutFlag, "wait-timeout", 45*time.Minute, "Maximum time to wait with --wait")
}

// executionInput is the first state's input.
func executionInput(runID string) (string, error) {
	b, err := json.Marshal(pipeline.Event{RunID: runID})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if stateMachineFlag == "" {
		return fmt.Errorf("%w: --state-machine or PIPELINE_STATE_MACHINE_ARN", config.ErrMissing)
	}
	ctx := cmd.Context()
	client := sfn.NewFromConfig(awsConfig(ctx))

	runID := pipeline.EnsureRunID(runIDFlag)
	input, err := executionInput(runID)
	if err != nil {
		return err
	}
	out, err := client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(stateMachineFlag),
		Name:            aws.String(runID),
		Input:           aws.String(input),
	})
	if err != nil {
		return fmt.Errorf("StartExecution: %s", cli.DescribeAWSError(err))
	}
	executionArn := aws.ToString(out.ExecutionArn)
	fmt.Fprintf(cmd.OutOrStdout(), "runId:     %s\nexecution: %s\n", runID, executionArn)

	if !waitFlag {
		return nil
	}
	return waitForExecution(ctx, cmd, client, executionArn)
}

func waitForExecution(ctx context.Context, cmd *cobra.Command, client *sfn.Client, executionArn string) error {
	start := time.Now()
	var status sfntypes.ExecutionStatus
	var desc *sfn.DescribeExecutionOutput
	res := poll.Until(ctx, 10*time.Second, waitTimeoutFlag, func(ctx context.Context) (bool, error) {
		out, err := client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{ExecutionArn: aws.String(executionArn)})
		if err != nil {
			return false, fmt.Errorf("DescribeExecution: %s", cli.DescribeAWSError(err))
		}
		desc, status = out, out.Status
		log.Debug().Str("status", string(status)).Msg("Execution status")
		return status != sfntypes.ExecutionStatusRunning, nil
	})
	switch res.Outcome {
	case poll.Failed:
		return res.Err
	case poll.TimedOut:
		return fmt.Errorf("execution still %s after %s", status, cli.FormatDurationShort(time.Since(start)))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "status:    %s (%s)\n", status, cli.FormatDurationShort(time.Since(start)))
	if desc.Output != nil {
		return cli.PrintJSON(cmd.OutOrStdout(), []byte(*desc.Output))
	}
	if status != sfntypes.ExecutionStatusSucceeded {
		return fmt.Errorf("execution %s: %s %s", status, aws.ToString(desc.Error), aws.ToString(desc.Cause))
	}
	return nil
}
