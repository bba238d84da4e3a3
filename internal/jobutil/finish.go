package jobutil

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/metrics"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

// Fail marks ev as failed, logs the error and persists it to the ledger.
// A ledger write failure is logged and otherwise ignored.
func Fail(ctx context.Context, ledger *store.RunStore, stage string, ev pipeline.Event, err error) pipeline.Event {
	if werr := SetStageError(ctx, ev.RunID, stage, err.Error(), ledger.PutError); werr != nil {
		log.Warn().Err(werr).Str("runId", ev.RunID).Str("stage", stage).Msg("Failed to record stage error")
	}
	return ev.Failed(err)
}

// Finish closes out a stage invocation: it writes the ledger record for a
// successful outcome (errors are persisted by Fail; a nil ledger records
// nothing) and returns the stage's EMF recorder with the
// duration and outcome counters set. Callers add stage metrics and Flush.
func Finish(ctx context.Context, ledger *store.RunStore, stage string, started time.Time, ev pipeline.Event, handle string) *metrics.Recorder {
	rec := store.StageRecord{
		RunID:          ev.RunID,
		Stage:          stage,
		Status:         ev.Status,
		Detail:         ev.Error,
		TrackingHandle: handle,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	if ev.Post != nil {
		rec.Title = ev.Post.Title
	}
	if ev.Status != pipeline.StatusError {
		ledger.Record(ctx, rec)
	}

	m := metrics.ForStage(stage).
		Duration("StageDurationMs", time.Since(started)).
		Property("runId", ev.RunID).
		Property("status", ev.Status)
	if ev.Status == pipeline.StatusError {
		return m.Count("StageError", 1)
	}
	return m.Count("StageSuccess", 1)
}
