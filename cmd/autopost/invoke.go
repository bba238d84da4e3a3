package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ryan-longoria/socialmedia-automation/internal/cli"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <stage> [payload|-]",
	Short: "Invoke one pipeline stage synchronously and print its result",
	Long: `Invoke runs a single stage Lambda with a JSON payload. Stage names are
prefixed with --prefix unless they already carry it or are full ARNs.
Pass "-" to read the payload from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: invokeStage,
}

func invokeStage(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) == 2 {
		arg = args[1]
	}
	raw, err := cli.ReadPayload(arg, os.Stdin)
	if err != nil {
		return err
	}
	payload, err := cli.ValidatePayload(raw)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := lambda.NewFromConfig(awsConfig(ctx))
	function := cli.ResolveFunction(args[0], prefixFlag)
	log.Debug().Str("function", function).Int("payloadBytes", len(payload)).Msg("Invoking stage")

	out, err := client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %s", function, cli.DescribeAWSError(err))
	}
	if perr := cli.PrintJSON(cmd.OutOrStdout(), out.Payload); perr != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(out.Payload))
	}
	if out.FunctionError != nil {
		return fmt.Errorf("%s returned a function error: %s", function, aws.ToString(out.FunctionError))
	}
	return nil
}
