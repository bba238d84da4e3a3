// Package main provides the Lambda entry point for the Content Store.
//
// It writes the enriched post to the content bucket as the JSON snapshot
// the render node downloads (most_recent_post.json by default).
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/contentstore"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "store-data-lambda"

var coldStart = true

// postSaver persists the post snapshot.
type postSaver interface {
	Save(ctx context.Context, post pipeline.Post) error
}

// stage holds what init() wired. configErr is set when the configuration is
// unusable; every invocation then fails with it.
type stage struct {
	posts     postSaver
	runs      *store.RunStore
	configErr error
}

var app stage

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.LoadContent(config.Env)
	var problems lambdaboot.Problems
	problems.Add(cfg.Validate())

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, cfg.Bucket)
	posts := contentstore.New(s3s.Client, cfg)
	app = stage{
		posts:     posts,
		runs:      lambdaboot.InitRunStore(aws.Config),
		configErr: problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		S3Bucket("content", posts.Bucket()).
		DynamoTable("runs", app.runs.TableName()).
		Config("postKey", posts.Key()).
		Log()
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, raw json.RawMessage) (pipeline.Event, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", functionName).Msg("Cold start, first invocation")
	}
	return app.handle(ctx, raw)
}

func (s *stage) handle(ctx context.Context, raw json.RawMessage) (pipeline.Event, error) {
	started := time.Now()
	in, err := jsonutil.Decode[pipeline.Event](raw)
	out := pipeline.Event{RunID: pipeline.EnsureRunID(in.RunID), Post: in.Post}
	switch {
	case s.configErr != nil:
		out = jobutil.Fail(ctx, s.runs, pipeline.StageStore, out, s.configErr)
	case err != nil:
		out = jobutil.Fail(ctx, s.runs, pipeline.StageStore, out, err)
	case in.Post == nil:
		out = jobutil.Fail(ctx, s.runs, pipeline.StageStore, out, errors.New("no post in input"))
	default:
		if err := s.posts.Save(ctx, *in.Post); err != nil {
			out = jobutil.Fail(ctx, s.runs, pipeline.StageStore, out, err)
		} else {
			out = out.With(pipeline.StatusStored)
		}
	}

	jobutil.Finish(ctx, s.runs, pipeline.StageStore, started, out, "").Flush()
	return out, nil
}
