// Package main provides autopost, the operator CLI for the AnimeUtopia
// pipeline. It starts pipeline runs, invokes single stages, tails stage
// logs, inspects render commands and run ledgers, and runs the title
// segmenter offline.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
)

// defaultFunctionPrefix is prepended to stage names ("render-video").
const defaultFunctionPrefix = "animeutopia-"

// Global flags
var (
	profileFlag  string
	regionFlag   string
	prefixFlag   string
	logLevelFlag string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "Operate the AnimeUtopia post pipeline",
	Long: `autopost drives and inspects the AnimeUtopia pipeline from a terminal.

Examples:
  autopost run --wait
  autopost invoke fetch-rss
  autopost invoke render-video '{"runId":"3f1c..."}'
  autopost logs render-video --since 1h --filter Dispatch
  autopost command 8a6b... --instance i-0abc
  autopost runs 3f1c...
  autopost segment "Some Show Anime Reveals New Trailer" -c "Some Show: Second Season"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitWith(logLevelFlag, "console", os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", os.Getenv("AWS_PROFILE"), "AWS shared config profile")
	rootCmd.PersistentFlags().StringVar(&regionFlag, "region", "", "AWS region (default from the profile)")
	rootCmd.PersistentFlags().StringVar(&prefixFlag, "prefix", logging.EnvOrDefault("AUTOPOST_FUNCTION_PREFIX", defaultFunctionPrefix), "Prefix that turns stage names into Lambda function names")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", logging.EnvOrDefault("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, invokeCmd, logsCmd, commandCmd, runsCmd, segmentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// awsConfig loads the AWS config for the global flags.
func awsConfig(ctx context.Context) aws.Config {
	return cli.InitAWS(ctx, profileFlag, regionFlag)
}
