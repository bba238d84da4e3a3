// Package main provides the Lambda entry point for the Notifier.
//
// It presigns download links for the published video and project, then
// announces the post on every configured channel: SNS (email), a Microsoft
// Teams webhook (URL from TEAMS_WEBHOOK_URL or the SecureString parameter in
// TEAMS_WEBHOOK_PARAM) and an EventBridge bus.
//
// Memory: 128 MB
// Timeout: 5 minutes (ARTIFACT_WAIT_TIMEOUT bounds the wait for the video)
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/contentstore"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/notify"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/publish"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "notify-post-lambda"

var coldStart = true

// postNotifier announces a run's artifacts.
type postNotifier interface {
	Notify(ctx context.Context, runID string, post *pipeline.Post, a pipeline.Artifacts) (notify.Result, error)
}

// postLoader reads the stored post snapshot.
type postLoader interface {
	Load(ctx context.Context) (pipeline.Post, error)
	Bucket() string
}

// stage holds what init() wired. configErr is set when the configuration is
// unusable (no bucket, no channel, unreadable webhook parameter); every
// invocation then fails with it.
type stage struct {
	notifier   postNotifier
	posts      postLoader
	tags       s3util.TaggingAPI
	publishCfg config.Publish
	runs       *store.RunStore
	configErr  error
}

var app stage

// Result is the stage output: the pipeline event plus what was sent.
type Result struct {
	pipeline.Event
	Notification *notify.Result `json:"notification,omitempty"`
}

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	cfg := lambdaboot.Load(&problems, config.LoadNotify(config.Env))
	publishCfg := lambdaboot.Load(&problems, config.LoadPublish(config.Env))

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, cfg.Bucket)

	var channels []notify.Channel
	if cfg.SNSTopicARN != "" {
		channels = append(channels, notify.NewSNSChannel(sns.NewFromConfig(aws.Config), cfg.SNSTopicARN))
	}
	url, err := lambdaboot.LoadTeamsWebhook(aws.SSM, cfg.TeamsWebhookURL, cfg.TeamsWebhookParam)
	problems.Add(err)
	if url != "" {
		channels = append(channels, notify.NewTeamsChannel(url))
	}
	if cfg.EventBusName != "" {
		channels = append(channels, notify.NewEventChannel(eventbridge.NewFromConfig(aws.Config), cfg.EventBusName))
	}

	notifier, err := notify.New(cfg, s3s.Presigner, s3s.Client, channels...)
	problems.Add(err)

	app = stage{
		posts:      contentstore.New(s3s.Client, config.LoadContent(config.Env)),
		tags:       s3s.Client,
		publishCfg: publishCfg,
		runs:       lambdaboot.InitRunStore(aws.Config),
		configErr:  problems.Err(),
	}
	if notifier != nil {
		app.notifier = notifier
	}

	lambdaboot.StartupLog(functionName, initStart).
		S3Bucket("artifacts", cfg.Bucket).
		Topic("email", cfg.SNSTopicARN).
		SSMParam("teamsWebhook", cfg.TeamsWebhookParam).
		EventBus("events", cfg.EventBusName).
		DynamoTable("runs", app.runs.TableName()).
		Feature("teams", url != "").
		Config("linkExpiry", cfg.LinkExpiry.String()).
		Config("artifactWaitTimeout", cfg.ArtifactWaitTimeout.String()).
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
	logger := log.With().Str("runId", out.RunID).Str("stage", pipeline.StageNotify).Logger()

	if s.configErr != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageNotify, out.Event, s.configErr)
		jobutil.Finish(ctx, s.runs, pipeline.StageNotify, started, out.Event, "").Flush()
		return out, nil
	}

	artifacts := publish.Keys(s.publishCfg, out.RunID)
	if in.Artifacts != nil && in.Artifacts.VideoKey != "" {
		artifacts = *in.Artifacts
	}
	out.Artifacts = &artifacts

	post := in.Post
	if post == nil {
		if p, err := s.posts.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("No stored post; notifying without a title")
		} else {
			post = &p
		}
	}

	res, err := s.notifier.Notify(ctx, out.RunID, post, artifacts)
	out.Notification = &res
	if err != nil {
		out.Event = jobutil.Fail(ctx, s.runs, pipeline.StageNotify, out.Event, err)
	} else {
		out.Event = out.Event.With(pipeline.StatusMessagePosted)
		s.tagArtifacts(ctx, artifacts)
	}

	jobutil.Finish(ctx, s.runs, pipeline.StageNotify, started, out.Event, "").
		Count("ChannelsNotified", len(res.Channels)).
		Flush()
	return out, nil
}

// tagArtifacts applies the cost-allocation tag to objects the render node
// uploaded with the AWS CLI, which cannot tag on upload.
func (s *stage) tagArtifacts(ctx context.Context, a pipeline.Artifacts) {
	if s.tags == nil {
		return
	}
	bucket := a.Bucket
	if bucket == "" {
		bucket = s.posts.Bucket()
	}
	for _, key := range []string{a.VideoKey, a.ProjectKey} {
		if key == "" {
			continue
		}
		if err := s3util.TagObject(ctx, s.tags, bucket, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to tag artifact")
		}
	}
}
