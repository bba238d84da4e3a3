// Package main provides the Lambda entry point for the Feed Fetcher.
//
// First state of the pipeline. It fetches the news feed, picks the newest
// entry and returns it when its primary category matches CATEGORY_KEYWORD.
// A run ID is minted here unless the caller supplied one.
//
// Memory: 256 MB
// Timeout: 1 minute
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/feed"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

const functionName = "fetch-rss-lambda"

var coldStart = true

// postSource is the feed the stage reads.
type postSource interface {
	Fetch(ctx context.Context) (*pipeline.Post, error)
}

// stage holds what init() wired. configErr is set when the configuration is
// unusable; every invocation then fails with it.
type stage struct {
	feed      postSource
	runs      *store.RunStore
	configErr error
}

var app stage

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	cfg := lambdaboot.Load(&problems, config.LoadFeed(config.Env))

	aws := lambdaboot.InitAWS()
	app = stage{
		feed:      feed.New(cfg),
		runs:      lambdaboot.InitRunStore(aws.Config),
		configErr: problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		DynamoTable("runs", app.runs.TableName()).
		Config("feedUrl", cfg.URL).
		Config("categoryKeyword", cfg.CategoryKeyword).
		Config("timeout", cfg.Timeout.String()).
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
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable input payload")
	}
	out := pipeline.Event{RunID: pipeline.EnsureRunID(in.RunID)}
	logger := log.With().Str("runId", out.RunID).Str("stage", pipeline.StageFetch).Logger()

	if s.configErr != nil {
		out = jobutil.Fail(ctx, s.runs, pipeline.StageFetch, out, s.configErr)
		jobutil.Finish(ctx, s.runs, pipeline.StageFetch, started, out, "").Flush()
		return out, nil
	}

	post, err := s.feed.Fetch(ctx)
	switch {
	case err != nil:
		out = jobutil.Fail(ctx, s.runs, pipeline.StageFetch, out, err)
	case post == nil:
		logger.Info().Msg("No relevant post")
		out = out.With(pipeline.StatusNoPost)
	default:
		logger.Info().Str("title", post.Title).Str("link", post.Link).Msg("Relevant post found")
		out.Post = post
		out = out.With(pipeline.StatusPostFound)
	}

	m := jobutil.Finish(ctx, s.runs, pipeline.StageFetch, started, out, "")
	if post != nil {
		m.Count("PostsFound", 1)
	}
	m.Flush()
	return out, nil
}
