// Package anilist queries the AniList GraphQL API for the canonical title
// variants and cover art of a show.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultURL is the public AniList GraphQL endpoint.
	DefaultURL = "https://graphql.anilist.co"

	defaultTimeout = 30 * time.Second
)

const mediaQuery = `query ($searchTitle: String) {
  Media(type: ANIME, search: $searchTitle) {
    title {
      romaji
      english
      native
    }
    coverImage {
      extraLarge
      large
      medium
    }
  }
}`

// Media is the subset of an AniList Media record the pipeline uses.
type Media struct {
	Titles   []string
	CoverURL string
}

// Client calls the AniList API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the given endpoint; an empty endpoint uses
// DefaultURL.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    endpoint,
	}
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type mediaResponse struct {
	Data struct {
		Media *struct {
			Title struct {
				Romaji  *string `json:"romaji"`
				English *string `json:"english"`
				Native  *string `json:"native"`
			} `json:"title"`
			CoverImage struct {
				ExtraLarge *string `json:"extraLarge"`
				Large      *string `json:"large"`
				Medium     *string `json:"medium"`
			} `json:"coverImage"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// Search looks up the best AniList match for title. A search with no match
// returns an empty Media and no error; AniList reports that as a 404 GraphQL
// error, which is mapped here.
func (c *Client) Search(ctx context.Context, title string) (Media, error) {
	body, err := json.Marshal(graphQLRequest{
		Query:     mediaQuery,
		Variables: map[string]string{"searchTitle": title},
	})
	if err != nil {
		return Media{}, fmt.Errorf("marshal query: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Media{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("AniList request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Media{}, fmt.Errorf("read response: %w", err)
	}
	log.Debug().
		Str("searchTitle", title).
		Int("statusCode", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("AniList response")

	var resp mediaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		if httpResp.StatusCode >= 400 {
			return Media{}, fmt.Errorf("AniList HTTP %d: %s", httpResp.StatusCode, truncate(string(raw), 200))
		}
		return Media{}, fmt.Errorf("parse response: %w", err)
	}

	if len(resp.Errors) > 0 {
		if resp.Errors[0].Status == http.StatusNotFound {
			log.Info().Str("searchTitle", title).Msg("No AniList match")
			return Media{}, nil
		}
		return Media{}, fmt.Errorf("AniList error: %s (status %d)", resp.Errors[0].Message, resp.Errors[0].Status)
	}
	if httpResp.StatusCode >= 400 {
		return Media{}, fmt.Errorf("AniList HTTP %d", httpResp.StatusCode)
	}

	m := resp.Data.Media
	if m == nil {
		return Media{}, nil
	}
	var out Media
	for _, t := range []*string{m.Title.Romaji, m.Title.English, m.Title.Native} {
		if t != nil && *t != "" {
			out.Titles = append(out.Titles, *t)
		}
	}
	if m.CoverImage.ExtraLarge != nil {
		out.CoverURL = *m.CoverImage.ExtraLarge
	}
	log.Info().Str("searchTitle", title).Strs("titles", out.Titles).Bool("hasCover", out.CoverURL != "").Msg("AniList match")
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
