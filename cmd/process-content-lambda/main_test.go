package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/enrich"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

type fakeEnricher struct {
	got   []pipeline.Post
	runID string
	err   error
}

func (f *fakeEnricher) Enrich(_ context.Context, runID string, post pipeline.Post) (pipeline.Post, enrich.Report, error) {
	f.got = append(f.got, post)
	f.runID = runID
	if f.err != nil {
		return pipeline.Post{}, enrich.Report{}, f.err
	}
	post.Title = "Some Show"
	post.Description = "Anime Reveals New Trailer"
	return post, enrich.Report{CoreTitle: "Some Show", Score: 100}, nil
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		enrichErr error
		configErr error
		status    string
		wantTitle string
		wantCalls int
	}{
		{
			name:      "post at top level",
			input:     `{"runId":"run-1","status":"anime_post_found","post":{"title":"Some Show Anime Reveals New Trailer"}}`,
			status:    pipeline.StatusProcessed,
			wantTitle: "Some Show",
			wantCalls: 1,
		},
		{
			name:      "post nested under rssData",
			input:     `{"runId":"run-1","rssData":{"post":{"title":"Some Show Anime Reveals New Trailer"}}}`,
			status:    pipeline.StatusProcessed,
			wantTitle: "Some Show",
			wantCalls: 1,
		},
		{
			name:      "task envelope",
			input:     `{"Payload":{"runId":"run-1","post":{"title":"Some Show Anime Reveals New Trailer"}},"StatusCode":200}`,
			status:    pipeline.StatusProcessed,
			wantTitle: "Some Show",
			wantCalls: 1,
		},
		{name: "no post", input: `{"runId":"run-1"}`, status: pipeline.StatusError},
		{name: "unreadable input", input: `{"runId":`, status: pipeline.StatusError},
		{
			name:      "enrich error",
			input:     `{"runId":"run-1","post":{"title":"x"}}`,
			enrichErr: enrich.ErrNoTitle,
			status:    pipeline.StatusError,
			wantCalls: 1,
		},
		{
			name:      "missing bucket",
			input:     `{"runId":"run-1","post":{"title":"x"}}`,
			configErr: fmt.Errorf("%w: CONTENT_BUCKET", config.ErrMissing),
			status:    pipeline.StatusError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEnricher{err: tt.enrichErr}
			s := &stage{enricher: f, configErr: tt.configErr}
			out, err := s.handle(context.Background(), json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.Len(t, f.got, tt.wantCalls)
			if tt.status == pipeline.StatusError {
				assert.NotEmpty(t, out.Error)
				assert.Nil(t, out.Post)
				return
			}
			require.NotNil(t, out.Post)
			assert.Equal(t, tt.wantTitle, out.Post.Title)
			assert.Equal(t, "run-1", f.runID)
		})
	}
}

func TestHandle_ConfigErrorNamesSetting(t *testing.T) {
	s := &stage{enricher: &fakeEnricher{}, configErr: fmt.Errorf("%w: CONTENT_BUCKET", config.ErrMissing)}
	out, err := s.handle(context.Background(), json.RawMessage(`{"post":{"title":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusError, out.Status)
	assert.Contains(t, out.Error, "CONTENT_BUCKET")
}
