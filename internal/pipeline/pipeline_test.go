package pipeline

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEnsureRunID(t *testing.T) {
	assert.Equal(t, "run-1", EnsureRunID("run-1"))

	got := EnsureRunID("  ")
	_, err := uuid.Parse(got)
	assert.NoError(t, err, "EnsureRunID minted %q, not a UUID", got)
}

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{VideoKey("r1", "anime_post.mp4"), "outputs/r1/anime_post.mp4"},
		{ProjectKey("r1", "anime_template_exported.aep"), "exports/r1/anime_template_exported.aep"},
		{CoverKey("r1", ""), "images/r1/cover.jpg"},
		{CoverKey("r1", ".png"), "images/r1/cover.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}

func TestEventStatus(t *testing.T) {
	ev := Event{RunID: "r1", Post: &Post{Title: "Some Show"}}
	failed := ev.Failed(errors.New("feed unreachable"))
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "feed unreachable", failed.Error)
	assert.Empty(t, ev.Status, "Failed must not modify the receiver")

	ok := failed.With(StatusProcessed)
	assert.Equal(t, StatusProcessed, ok.Status)
	assert.Empty(t, ok.Error)
	assert.NotNil(t, ok.Post)
}
