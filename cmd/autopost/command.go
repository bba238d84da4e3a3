package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/remote"
)

var instanceFlag string

var commandCmd = &cobra.Command{
	Use:   "command <commandId>",
	Short: "Show the status and output of a dispatched render command",
	Long: `Command looks up an SSM Run Command invocation on the render node. The
command ID is the tracking handle reported by render-video and save-video.`,
	Args: cobra.ExactArgs(1),
	RunE: showCommand,
}

func init() {
	commandCmd.Flags().StringVar(&instanceFlag, "instance", logging.EnvOrDefault("INSTANCE_ID", ""), "Render node instance ID")
}

func showCommand(cmd *cobra.Command, args []string) error {
	if instanceFlag == "" {
		return fmt.Errorf("%w: --instance or INSTANCE_ID", config.ErrMissing)
	}
	ctx := cmd.Context()
	exec := remote.NewExecutor(ssm.NewFromConfig(awsConfig(ctx)), 0)
	inv, err := exec.Invocation(ctx, args[0], instanceFlag)
	if err != nil {
		return fmt.Errorf("%s", cli.DescribeAWSError(err))
	}
	return cli.PrintJSON(cmd.OutOrStdout(), inv)
}
