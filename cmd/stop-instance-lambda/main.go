// Package main provides the Lambda entry point that powers off the render
// instance once the artifacts are published.
//
// Stopping an instance that is already stopped is a no-op on the EC2 side.
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/remote"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "stop-instance-lambda"

var coldStart = true

// powerSwitch changes the power state of the render instance.
type powerSwitch interface {
	StopInstance(ctx context.Context, instanceID string) (remote.Transition, error)
}

// stage holds what init() wired. configErr is set when the configuration is
// unusable; every invocation then fails with it.
type stage struct {
	power      powerSwitch
	instanceID string
	runs       *store.RunStore
	configErr  error
}

var app stage

// Result is the stage output: the pipeline event plus the state transition.
type Result struct {
	pipeline.Event
	Instance *remote.Transition `json:"instance,omitempty"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	node := lambdaboot.Load(&problems, config.LoadNode(config.Env))
	problems.Add(node.Validate())

	aws := lambdaboot.InitAWS()
	app = stage{
		power:      remote.NewPower(ec2.NewFromConfig(aws.Config)),
		instanceID: node.InstanceID,
		runs:       lambdaboot.InitRunStore(aws.Config),
		configErr:  problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		Instance("render", app.instanceID).
		DynamoTable("runs", app.runs.TableName()).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, raw json.RawMessage) (Result, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", functionName).Msg("Cold start, first invocation")
	}
	return app.handle(ctx, raw)
}

func (s *stage) handle(ctx context.Context, raw json.RawMessage) (Result, error) {
	started := time.Now()
	in, err := jsonutil.Decode[pipeline.Event](raw)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable input payload")
	}
	out := Result{Event: in}
	out.RunID = pipeline.EnsureRunID(in.RunID)

	if s.configErr != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageStop, out.Event, s.configErr)
	} else if tr, err := s.power.StopInstance(ctx, s.instanceID); err != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageStop, out.Event, err)
	} else {
		out.Event = out.Event.With(pipeline.StatusStopped)
		out.Instance = &tr
	}

	jobutil.Finish(ctx, s.runs, pipeline.StageStop, started, out.Event, "").Flush()
	return out, nil
}
