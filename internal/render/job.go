package render

import (
	"github.com/ryan-longoria/socialmedia-automation/internal/command"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
)

// Environment variables the After Effects automation script reads.
const (
	EnvOutputDir = "ANIMEUTOPIA_OUTPUT_DIR"
	EnvRunID     = "ANIMEUTOPIA_RUN_ID"
)

// RenderJob builds the job that renders the stored post for a run. The
// post snapshot is handed to the node as a presigned URL in cfg.InputVar;
// After Effects runs cfg.Script and writes into cfg.OutputDir.
func RenderJob(cfg config.Render, runID string) Job {
	return Job{
		InstanceID: cfg.InstanceID,
		Script: command.Script{
			Shell: command.PowerShell,
			Steps: []command.Step{{
				Dir:        cfg.WorkDir,
				Executable: cfg.Executable,
				Args:       []string{"-noui", "-r", cfg.Script},
				Env: []command.Payload{
					{Name: cfg.InputVar, Value: cfg.Placeholder, Sensitive: true},
					{Name: EnvOutputDir, Value: cfg.OutputDir},
					{Name: EnvRunID, Value: runID},
				},
			}},
		},
		InputBucket: cfg.Bucket,
		InputKey:    cfg.PostKey,
		InputExpiry: cfg.InputURLExpiry,
		Placeholder: cfg.Placeholder,
		OutputPath:  cfg.OutputDir,
		Comment:     "animeutopia render " + runID,
	}
}
