// Package feed fetches the news feed and picks the post the pipeline works on.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

// Fetcher downloads and filters the feed.
type Fetcher struct {
	parser  *gofeed.Parser
	url     string
	keyword string
	timeout time.Duration
}

// New creates a Fetcher from configuration.
func New(cfg config.Feed) *Fetcher {
	p := gofeed.NewParser()
	p.UserAgent = "animeutopia-feed/1.0"
	return &Fetcher{parser: p, url: cfg.URL, keyword: cfg.CategoryKeyword, timeout: cfg.Timeout}
}

// Fetch returns the newest entry when it is relevant, or nil when it is not.
// A feed that cannot be fetched or parsed is an error.
func (f *Fetcher) Fetch(ctx context.Context) (*pipeline.Post, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()
	parsed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}
	log.Debug().
		Str("feedUrl", f.url).
		Int("items", len(parsed.Items)).
		Dur("duration", time.Since(start)).
		Msg("Feed fetched")
	return Select(parsed, f.keyword), nil
}

// Select returns the newest item of feed as a Post if its primary category
// contains keyword (case-insensitive). Items without a parsable date rank
// below dated ones; ties keep feed order.
func Select(feed *gofeed.Feed, keyword string) *pipeline.Post {
	item := Newest(feed.Items)
	if item == nil {
		log.Info().Msg("Feed has no entries")
		return nil
	}
	category := PrimaryCategory(item)
	if !strings.Contains(strings.ToLower(category), strings.ToLower(keyword)) {
		log.Info().Str("title", item.Title).Str("category", category).Str("keyword", keyword).Msg("Newest entry not relevant")
		return nil
	}
	return &pipeline.Post{
		Title:       strings.TrimSpace(item.Title),
		Link:        item.Link,
		Description: strings.TrimSpace(item.Description),
		PubDate:     item.Published,
		Category:    category,
	}
}

// Newest returns the item with the latest publish time.
func Newest(items []*gofeed.Item) *gofeed.Item {
	var best *gofeed.Item
	for _, it := range items {
		if it == nil {
			continue
		}
		if best == nil {
			best = it
			continue
		}
		if it.PublishedParsed == nil {
			continue
		}
		if best.PublishedParsed == nil || it.PublishedParsed.After(*best.PublishedParsed) {
			best = it
		}
	}
	return best
}

// PrimaryCategory is the first category of an item, or "".
func PrimaryCategory(item *gofeed.Item) string {
	if len(item.Categories) == 0 {
		return ""
	}
	return strings.TrimSpace(item.Categories[0])
}
