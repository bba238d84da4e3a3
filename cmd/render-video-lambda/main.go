// Package main provides the Lambda entry point for the Render Orchestrator.
//
// It waits until the render instance is running and its SSM agent is
// Online, then sends one Run Command that starts After Effects with a
// presigned URL for the stored post. The command ID is returned as the
// tracking handle; the render itself is not awaited.
//
// Memory: 128 MB
// Timeout: 15 minutes (power and agent waits are bounded by POWER_TIMEOUT
// and AGENT_TIMEOUT)
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/metrics"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/remote"
	"github.com/ryan-longoria/socialmedia-automation/internal/render"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "render-video-lambda"

// commandDeliveryTimeout bounds how long SSM holds the command for an
// instance that has not picked it up.
const commandDeliveryTimeout = 600

var coldStart = true

// dispatcher brings the node to readiness and sends one job.
type dispatcher interface {
	Run(ctx context.Context, job render.Job) render.Result
}

// stage holds what init() wired. A missing instance ID or placeholder is
// reported by the orchestrator itself; configErr covers malformed values.
type stage struct {
	orchestrator dispatcher
	cfg          config.Render
	runs         *store.RunStore
	configErr    error
}

var app stage

// Result is the stage output: the pipeline event plus the dispatch result.
type Result struct {
	pipeline.Event
	Render render.Result `json:"render"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	cfg := lambdaboot.Load(&problems, config.LoadRender(config.Env))

	aws := lambdaboot.InitAWS()
	power := remote.NewPower(ec2.NewFromConfig(aws.Config))
	s3Client := s3.NewFromConfig(aws.Config)
	app = stage{
		orchestrator: render.New(render.Ports{
			Power:     power,
			Starter:   power,
			Agents:    remote.NewAgents(aws.SSM),
			Exec:      remote.NewExecutor(aws.SSM, commandDeliveryTimeout),
			Presigner: s3util.Presigner{Client: s3.NewPresignClient(s3Client)},
		}, cfg.Node),
		cfg:       cfg,
		runs:      lambdaboot.InitRunStore(aws.Config),
		configErr: problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		Instance("render", cfg.InstanceID).
		S3Bucket("content", cfg.Bucket).
		DynamoTable("runs", app.runs.TableName()).
		Feature("autoStart", cfg.AutoStart).
		Config("pollInterval", cfg.PollInterval.String()).
		Config("powerTimeout", cfg.PowerTimeout.String()).
		Config("agentTimeout", cfg.AgentTimeout.String()).
		Config("inputUrlExpiry", cfg.InputURLExpiry.String()).
		Config("postKey", cfg.PostKey).
		Config("executable", cfg.Executable).
		Config("script", cfg.Script).
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
	log.Info().Str("runId", out.RunID).Str("instanceId", s.cfg.InstanceID).Msg("Render requested")

	if s.configErr != nil {
		out.Render = render.Result{Reason: render.ReasonConfigError, Detail: s.configErr.Error(), Readiness: render.ReadinessUnknown}
	} else {
		out.Render = s.orchestrator.Run(ctx, render.RenderJob(s.cfg, out.RunID))
	}
	if err := out.Render.Err(); err != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageRender, out.Event, err)
	} else {
		out.Event = out.Event.With(pipeline.StatusRenderTriggered)
	}

	recordDispatch(jobutil.Finish(ctx, s.runs, pipeline.StageRender, started, out.Event, out.Render.TrackingHandle), out.Render)
	return out, nil
}

// recordDispatch adds the orchestrator metrics and flushes.
func recordDispatch(m *metrics.Recorder, res render.Result) {
	m.Count("PowerPolls", res.PowerPolls).
		Count("AgentPolls", res.AgentPolls).
		Duration("PowerWaitMs", res.PowerWait).
		Duration("AgentWaitMs", res.AgentWait).
		Property("readiness", string(res.Readiness))
	if res.Dispatched {
		m.Count("Dispatched", 1).Property("commandId", res.TrackingHandle)
	} else {
		m.Count("DispatchFailed", 1).Property("reason", string(res.Reason))
	}
	m.Flush()
}
