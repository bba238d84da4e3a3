// Package publish copies the rendered video and the exported After Effects
// project from the render node to S3. The copy runs on the node itself, so it
// goes through the same readiness checks as the render.
package publish

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/command"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/render"
)

// awsExe is the AWS CLI on the render node.
const awsExe = "aws"

// Dispatcher runs a job on the render node. *render.Orchestrator implements it.
type Dispatcher interface {
	Run(ctx context.Context, job render.Job) render.Result
}

// Result is the dispatch result plus where the artifacts will land.
type Result struct {
	render.Result
	Artifacts pipeline.Artifacts `json:"artifacts"`
}

// Publisher builds and dispatches the upload commands.
type Publisher struct {
	dispatcher Dispatcher
	cfg        config.Publish
}

// New creates a Publisher.
func New(d Dispatcher, cfg config.Publish) *Publisher {
	return &Publisher{dispatcher: d, cfg: cfg}
}

// Keys returns the artifact locations for a run. ProjectKey is empty when
// the project copy is disabled.
func Keys(cfg config.Publish, runID string) pipeline.Artifacts {
	a := pipeline.Artifacts{
		Bucket:   cfg.Bucket,
		VideoKey: pipeline.VideoKey(runID, cfg.VideoFile),
	}
	if cfg.IncludeProject {
		a.ProjectKey = pipeline.ProjectKey(runID, cfg.ProjectFile)
	}
	return a
}

// Script returns one "aws s3 cp" step per artifact, run from the output
// directory.
func Script(cfg config.Publish, a pipeline.Artifacts) command.Script {
	steps := []command.Step{copyStep(cfg.OutputDir, cfg.VideoFile, a.Bucket, a.VideoKey)}
	if a.ProjectKey != "" {
		steps = append(steps, copyStep(cfg.OutputDir, cfg.ProjectFile, a.Bucket, a.ProjectKey))
	}
	return command.Script{Shell: command.PowerShell, Steps: steps}
}

func copyStep(dir, file, bucket, key string) command.Step {
	return command.Step{
		Dir:        dir,
		Executable: awsExe,
		Args:       []string{"s3", "cp", file, fmt.Sprintf("s3://%s/%s", bucket, key), "--only-show-errors"},
	}
}

// Publish dispatches the upload for runID. A missing bucket fails with
// ConfigError before anything is sent.
func (p *Publisher) Publish(ctx context.Context, runID string) Result {
	a := Keys(p.cfg, runID)
	if p.cfg.Bucket == "" {
		return Result{
			Result: render.Result{
				Reason:    render.ReasonConfigError,
				Detail:    fmt.Sprintf("%v: CONTENT_BUCKET", config.ErrMissing),
				Readiness: render.ReadinessUnknown,
			},
			Artifacts: a,
		}
	}

	res := p.dispatcher.Run(ctx, render.Job{
		InstanceID: p.cfg.InstanceID,
		Script:     Script(p.cfg, a),
		OutputPath: p.cfg.OutputDir,
		Comment:    "animeutopia publish " + runID,
	})
	if res.Dispatched {
		log.Info().
			Str("runId", runID).
			Str("videoKey", a.VideoKey).
			Str("projectKey", a.ProjectKey).
			Str("commandId", res.TrackingHandle).
			Msg("Artifact upload dispatched")
	}
	return Result{Result: res, Artifacts: a}
}
