// Package enrich turns a raw feed headline into the post the render node
// works from: the headline is split into a core title and a description,
// the core title is reconciled against AniList title variants, and the
// AniList cover art is downloaded, normalized to JPEG and stored in S3.
//
// Only a missing headline is an error. AniList and image failures degrade
// to an unreconciled title and a post without cover art.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/anilist"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
	"github.com/ryan-longoria/socialmedia-automation/internal/titles"
)

// ErrNoTitle is returned for a post without a headline.
var ErrNoTitle = errors.New("no title provided in post")

// Searcher looks up anime metadata by title. *anilist.Client implements it.
type Searcher interface {
	Search(ctx context.Context, title string) (anilist.Media, error)
}

// ImageFetcher downloads an image to a local file. *imaging.Downloader
// implements it.
type ImageFetcher interface {
	Download(ctx context.Context, url string) (string, int64, error)
}

// ImageNormalizer converts a local image to JPEG, returning the path to use.
// *imaging.Normalizer implements it.
type ImageNormalizer interface {
	Normalize(ctx context.Context, src string) string
}

// Enricher wires the segmenter, metadata search and cover pipeline.
type Enricher struct {
	Segmenter  *titles.Segmenter
	Search     Searcher
	Images     ImageFetcher
	Normalizer ImageNormalizer
	S3         s3util.PutAPI
	Bucket     string
}

// Report describes what enrichment did, for logs and the stage result.
type Report struct {
	CoreTitle  string `json:"coreTitle"`
	Score      int    `json:"score"`
	Candidates int    `json:"candidates"`
	CoverBytes int64  `json:"coverBytes,omitempty"`
	CoverKey   string `json:"coverKey,omitempty"`
}

// Enrich returns an enriched copy of post.
func (e *Enricher) Enrich(ctx context.Context, runID string, post pipeline.Post) (pipeline.Post, Report, error) {
	headline := strings.TrimSpace(post.Title)
	if headline == "" {
		return post, Report{}, ErrNoTitle
	}
	seg := e.Segmenter
	if seg == nil {
		seg = titles.Default
	}
	logger := log.With().Str("runId", runID).Logger()

	core, _ := seg.Split(headline)
	var media anilist.Media
	if e.Search != nil {
		m, err := e.Search.Search(ctx, core)
		if err != nil {
			logger.Warn().Err(err).Str("coreTitle", core).Msg("AniList search failed, continuing without metadata")
		} else {
			media = m
		}
	}

	candidates := media.Titles
	if len(candidates) == 0 {
		logger.Info().Msg("No anime titles returned from AniList; defaulting to full title")
		candidates = []string{headline}
	}
	s := seg.Segment(headline, candidates)
	report := Report{CoreTitle: s.CoreTitle, Score: s.Score, Candidates: len(candidates)}

	out := post
	out.Title = s.Title
	if out.Title == "" {
		out.Title = headline
	}
	if s.Description != "" {
		out.Description = s.Description
	}

	if media.CoverURL != "" {
		out.ImageURL = media.CoverURL
		key, n, err := e.storeCover(ctx, runID, media.CoverURL)
		report.CoverBytes = n
		if err != nil {
			logger.Warn().Err(err).Str("imageUrl", media.CoverURL).Msg("Cover art unavailable")
		} else {
			out.ImageRef = key
			report.CoverKey = key
		}
	}

	logger.Info().
		Str("coreTitle", s.CoreTitle).
		Str("title", out.Title).
		Int("score", s.Score).
		Bool("cover", out.ImageRef != "").
		Msg("Post enriched")
	return out, report, nil
}

// storeCover downloads, normalizes and uploads the cover. Local files are
// removed afterwards.
func (e *Enricher) storeCover(ctx context.Context, runID, url string) (string, int64, error) {
	if e.Images == nil || e.S3 == nil || e.Bucket == "" {
		return "", 0, fmt.Errorf("cover storage not configured")
	}
	path, n, err := e.Images.Download(ctx, url)
	if err != nil {
		return "", n, err
	}
	defer os.Remove(path)

	final := path
	if e.Normalizer != nil {
		final = e.Normalizer.Normalize(ctx, path)
		if final != path {
			defer os.Remove(final)
		}
	}

	ext := strings.ToLower(filepath.Ext(final))
	key := pipeline.CoverKey(runID, ext)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s3util.UploadFile(ctx, e.S3, e.Bucket, key, final, contentType); err != nil {
		return "", n, err
	}
	return key, n, nil
}
