package cmd

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/spf13/cobra"

	"github.com/chaos-io/cutout/segment"
)

func newLambdaCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda handler (default inside the Lambda runtime)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, cmd, *cfgFile)
			if err != nil {
				return err
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			proc := a.processor(store, a.remover())

			lambda.StartWithOptions(lambdaHandler(proc, a), lambda.WithEnableSIGTERM(a.close))
			return nil
		},
	}
}

type eventProcessor interface {
	Process(ctx context.Context, raw []byte) (*segment.Result, error)
}

func lambdaHandler(proc eventProcessor, a *app) func(context.Context, json.RawMessage) (*segment.Result, error) {
	return func(ctx context.Context, raw json.RawMessage) (*segment.Result, error) {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			a.logger.InfoContext(ctx, "invocation", "aws_request_id", lc.AwsRequestID)
		}
		return proc.Process(ctx, raw)
	}
}
