package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/remote"
)

type fakePower struct {
	ids []string
	err error
}

func (f *fakePower) StopInstance(_ context.Context, id string) (remote.Transition, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return remote.Transition{}, f.err
	}
	return remote.Transition{InstanceID: id, Previous: "running", Current: "stopping"}, nil
}

func TestHandle(t *testing.T) {
	f := &fakePower{}
	s := &stage{power: f, instanceID: "i-render"}
	out, err := s.handle(context.Background(), json.RawMessage(`{"runId":"run-1","status":"stored"}`))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusStopped, out.Status)
	assert.Equal(t, "run-1", out.RunID)
	require.NotNil(t, out.Instance)
	assert.Equal(t, "stopping", out.Instance.Current)
	assert.Equal(t, []string{"i-render"}, f.ids)
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name      string
		power     *fakePower
		configErr error
		calls     int
	}{
		{name: "stop error", power: &fakePower{err: errors.New("IncorrectInstanceState")}, calls: 1},
		{name: "missing instance", power: &fakePower{}, configErr: fmt.Errorf("%w: INSTANCE_ID", config.ErrMissing)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stage{power: tt.power, instanceID: "i-render", configErr: tt.configErr}
			out, err := s.handle(context.Background(), json.RawMessage(`{"runId":"run-1"}`))
			require.NoError(t, err)
			assert.Equal(t, pipeline.StatusError, out.Status)
			assert.NotEmpty(t, out.Error)
			assert.Nil(t, out.Instance)
			assert.Len(t, tt.power.ids, tt.calls)
		})
	}
}
