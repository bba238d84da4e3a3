// Package main provides the Lambda entry point for the Artifact Publisher.
//
// The render instance copies the rendered video and the exported project
// to run-scoped S3 keys with the AWS CLI. The copy is sent over SSM through
// the same orchestrator as the render, so the instance must again be
// running and Online before anything is dispatched.
//
// Memory: 128 MB
// Timeout: 15 minutes
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
	"github.com/ryan-longoria/socialmedia-automation/internal/publish"
	"github.com/ryan-longoria/socialmedia-automation/internal/remote"
	"github.com/ryan-longoria/socialmedia-automation/internal/render"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "save-video-lambda"

const commandDeliveryTimeout = 600

var coldStart = true

// artifactPublisher dispatches the upload of a run's outputs.
type artifactPublisher interface {
	Publish(ctx context.Context, runID string) publish.Result
}

// stage holds what init() wired. A missing bucket or instance ID is
// reported by the publisher; configErr covers malformed values.
type stage struct {
	publisher artifactPublisher
	runs      *store.RunStore
	configErr error
}

var app stage

// Result is the stage output: the pipeline event (with artifact keys) plus
// the dispatch result.
type Result struct {
	pipeline.Event
	Upload render.Result `json:"upload"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	cfg := lambdaboot.Load(&problems, config.LoadPublish(config.Env))

	aws := lambdaboot.InitAWS()
	power := remote.NewPower(ec2.NewFromConfig(aws.Config))
	orchestrator := render.New(render.Ports{
		Power:   power,
		Starter: power,
		Agents:  remote.NewAgents(aws.SSM),
		Exec:    remote.NewExecutor(aws.SSM, commandDeliveryTimeout),
	}, cfg.Node)
	app = stage{
		publisher: publish.New(orchestrator, cfg),
		runs:      lambdaboot.InitRunStore(aws.Config),
		configErr: problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		Instance("render", cfg.InstanceID).
		S3Bucket("artifacts", cfg.Bucket).
		DynamoTable("runs", app.runs.TableName()).
		Feature("publishProject", cfg.IncludeProject).
		Config("outputDir", cfg.OutputDir).
		Config("videoFile", cfg.VideoFile).
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

	var res publish.Result
	if s.configErr != nil {
		res.Result = render.Result{Reason: render.ReasonConfigError, Detail: s.configErr.Error(), Readiness: render.ReadinessUnknown}
	} else {
		res = s.publisher.Publish(ctx, out.RunID)
	}
	out.Upload = res.Result
	if err := res.Err(); err != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageSave, out.Event, err)
	} else {
		artifacts := res.Artifacts
		out.Artifacts = &artifacts
		out.Event = out.Event.With(pipeline.StatusUploadTriggered)
	}

	m := jobutil.Finish(ctx, s.runs, pipeline.StageSave, started, out.Event, res.TrackingHandle).
		Count("PowerPolls", res.PowerPolls).
		Count("AgentPolls", res.AgentPolls)
	if res.Dispatched {
		m.Property("commandId", res.TrackingHandle)
	} else {
		m.Property("reason", string(res.Reason))
	}
	m.Flush()
	return out, nil
}
