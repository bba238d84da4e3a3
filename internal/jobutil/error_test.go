package jobutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

func TestSetStageError(t *testing.T) {
	var got []string
	write := func(_ context.Context, runID, stage, msg string) error {
		got = append(got, runID, stage, msg)
		return nil
	}
	assert.NoError(t, SetStageError(context.Background(), "r1", "render-video", "agent timeout", write))
	assert.Equal(t, []string{"r1", "render-video", "agent timeout"}, got)
}

func TestSetStageError_WriterFails(t *testing.T) {
	write := func(context.Context, string, string, string) error { return errors.New("table missing") }
	assert.EqualError(t, SetStageError(context.Background(), "r1", "notify-post", "x", write), "table missing")
}

func TestSetStageError_NilWriter(t *testing.T) {
	assert.NoError(t, SetStageError(context.Background(), "r1", "fetch-rss", "x", nil))
}

func TestFinish_NilLedger(t *testing.T) {
	ev := pipeline.Event{RunID: "r1", Status: pipeline.StatusNoPost}
	assert.NotPanics(t, func() {
		m := Finish(context.Background(), nil, pipeline.StageFetch, time.Now(), ev, "")
		assert.NotNil(t, m)
	})
}

func TestFail(t *testing.T) {
	ev := Fail(context.Background(), nil, pipeline.StageRender, pipeline.Event{RunID: "r1"}, errors.New("AgentTimeout: not registered"))
	assert.Equal(t, pipeline.StatusError, ev.Status)
	assert.Equal(t, "AgentTimeout: not registered", ev.Error)
	assert.Equal(t, "r1", ev.RunID)
}
