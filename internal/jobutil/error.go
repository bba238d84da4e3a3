// Package jobutil provides shared helpers for stage lifecycle bookkeeping.
//
// SetStageError unifies the pattern every stage handler follows on failure:
// log the error and persist an error record for the run.
package jobutil

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ErrorWriter persists a stage error to the backing store.
// store.RunStore.PutError is the production implementation.
type ErrorWriter func(ctx context.Context, runID, stage, errMsg string) error

// SetStageError logs the error and delegates persistence to the provided
// writer. A nil writer only logs.
func SetStageError(ctx context.Context, runID, stage, msg string, write ErrorWriter) error {
	log.Error().
		Str("stage", stage).
		Str("runId", runID).
		Str("error", msg).
		Msg("Stage failed")
	if write == nil {
		return nil
	}
	return write(ctx, runID, stage, msg)
}
