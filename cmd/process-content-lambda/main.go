// Package main provides the Lambda entry point for the Title Segmenter and
// Metadata Enricher.
//
// It splits the feed headline into a core title and a description,
// reconciles the core title against AniList, and stores the cover art in
// the content bucket under images/<runId>/.
//
// Container: Heavy (ImageMagick for cover conversion; a pure-Go converter
// takes over when it is missing)
// Memory: 512 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/anilist"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/enrich"
	"github.com/ryan-longoria/socialmedia-automation/internal/imaging"
	"github.com/ryan-longoria/socialmedia-automation/internal/jobutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/jsonutil"
	"github.com/ryan-longoria/socialmedia-automation/internal/lambdaboot"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/metrics"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
	"github.com/ryan-longoria/socialmedia-automation/internal/titles"
)

const functionName = "process-content-lambda"

// coverMaxDimension bounds the pure-Go fallback conversion.
const coverMaxDimension = 2048

var coldStart = true

// postEnricher turns a feed post into the enriched post.
type postEnricher interface {
	Enrich(ctx context.Context, runID string, post pipeline.Post) (pipeline.Post, enrich.Report, error)
}

// stage holds what init() wired. configErr is set when the configuration is
// unusable; every invocation then fails with it.
type stage struct {
	enricher  postEnricher
	runs      *store.RunStore
	configErr error
}

var app stage

func init() {
	initStart := time.Now()
	logging.Init()

	var problems lambdaboot.Problems
	cfg := lambdaboot.Load(&problems, config.LoadEnrich(config.Env))
	content := config.LoadContent(config.Env)
	problems.Add(content.Validate())

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, content.Bucket)
	app = stage{
		enricher: &enrich.Enricher{
			Segmenter:  titles.Default,
			Search:     anilist.NewClient(cfg.APIURL),
			Images:     imaging.NewDownloader(cfg.ImageDir, cfg.MinImageBytes),
			Normalizer: imaging.NewNormalizer(cfg.ImageMagickExe, coverMaxDimension),
			S3:         s3s.Client,
			Bucket:     s3s.Bucket,
		},
		runs:      lambdaboot.InitRunStore(aws.Config),
		configErr: problems.Err(),
	}

	lambdaboot.StartupLog(functionName, initStart).
		S3Bucket("content", s3s.Bucket).
		DynamoTable("runs", app.runs.TableName()).
		Config("anilistUrl", cfg.APIURL).
		Config("imageMagickExe", cfg.ImageMagickExe).
		Config("imageDir", cfg.ImageDir).
		Log()
}

func main() {
	lambda.Start(handler)
}

// processEvent also accepts the post nested under rssData, the shape the
// state machine produced when the fetch result was stored with a ResultPath.
type processEvent struct {
	pipeline.Event
	RSSData *struct {
		Post *pipeline.Post `json:"post"`
	} `json:"rssData,omitempty"`
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
	in, err := jsonutil.Decode[processEvent](raw)
	out := pipeline.Event{RunID: pipeline.EnsureRunID(in.RunID)}
	if s.configErr != nil {
		return s.finish(ctx, started, jobutil.Fail(ctx, s.runs, pipeline.StageProcess, out, s.configErr), enrich.Report{}), nil
	}
	if err != nil {
		return s.finish(ctx, started, jobutil.Fail(ctx, s.runs, pipeline.StageProcess, out, err), enrich.Report{}), nil
	}
	post := in.Post
	if post == nil && in.RSSData != nil {
		post = in.RSSData.Post
	}
	if post == nil {
		return s.finish(ctx, started, jobutil.Fail(ctx, s.runs, pipeline.StageProcess, out, errors.New("no post in input")), enrich.Report{}), nil
	}

	enriched, report, err := s.enricher.Enrich(ctx, out.RunID, *post)
	if err != nil {
		return s.finish(ctx, started, jobutil.Fail(ctx, s.runs, pipeline.StageProcess, out, err), report), nil
	}
	out.Post = &enriched
	return s.finish(ctx, started, out.With(pipeline.StatusProcessed), report), nil
}

func (s *stage) finish(ctx context.Context, started time.Time, out pipeline.Event, report enrich.Report) pipeline.Event {
	m := jobutil.Finish(ctx, s.runs, pipeline.StageProcess, started, out, "").
		Metric("TitleMatchScore", float64(report.Score), metrics.UnitNone)
	if report.CoverKey != "" {
		m.Count("CoverStored", 1)
	}
	m.Flush()
	return out
}
