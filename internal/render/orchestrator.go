// Package render brings the render node to an executable-ready state and
// hands off exactly one command to it.
//
// A run moves through UNKNOWN -> STARTING_WAIT -> RUNNING -> AGENT_WAIT ->
// READY -> DISPATCHED. The node must be observed both running (EC2) and
// registered Online (SSM agent) before anything is submitted: SSM accepts
// commands for instances whose agent is not yet connected and reports a
// false success. Every failure becomes a Result; Run never returns an error.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/command"
	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/poll"
)

// Job describes one dispatch. When InputBucket and InputKey are set, a
// presigned GET URL for that object is bound into Script at Placeholder.
type Job struct {
	InstanceID string
	Script     command.Script

	InputBucket string
	InputKey    string
	InputExpiry time.Duration
	Placeholder string

	OutputPath string
	Comment    string
}

func (j Job) hasInput() bool {
	return j.InputBucket != "" || j.InputKey != ""
}

// Orchestrator runs Jobs against a single node. The zero value is not usable;
// build one with New.
type Orchestrator struct {
	power   PowerReader
	starter PowerStarter
	agents  AgentRegistry
	exec    Executor
	presign Presigner

	interval     time.Duration
	powerTimeout time.Duration
	agentTimeout time.Duration
	autoStart    bool
	sleep        poll.SleepFunc
}

// Ports groups the external dependencies of an Orchestrator. Starter and
// Presigner may be nil when auto start and input binding are unused.
type Ports struct {
	Power     PowerReader
	Starter   PowerStarter
	Agents    AgentRegistry
	Exec      Executor
	Presigner Presigner
}

// New builds an Orchestrator from the node configuration.
func New(ports Ports, node config.Node) *Orchestrator {
	return &Orchestrator{
		power:        ports.Power,
		starter:      ports.Starter,
		agents:       ports.Agents,
		exec:         ports.Exec,
		presign:      ports.Presigner,
		interval:     node.PollInterval,
		powerTimeout: node.PowerTimeout,
		agentTimeout: node.AgentTimeout,
		autoStart:    node.AutoStart,
		sleep:        poll.Sleep,
	}
}

// WithSleep replaces the wait between polls. Tests use a no-op sleep.
func (o *Orchestrator) WithSleep(sleep poll.SleepFunc) *Orchestrator {
	o.sleep = sleep
	return o
}

// Run drives one job to DISPATCHED or to a failure reason.
func (o *Orchestrator) Run(ctx context.Context, job Job) Result {
	res := Result{Readiness: ReadinessUnknown, Document: job.Script.Shell.Document()}

	if err := o.validate(job); err != nil {
		return res.fail(ReasonConfigError, "%v", err)
	}

	logger := log.With().Str("instanceId", job.InstanceID).Logger()

	// UNKNOWN -> STARTING_WAIT -> RUNNING
	startRequested := false
	powerStart := time.Now()
	powerRes := poll.Loop{Interval: o.interval, Timeout: o.powerTimeout, Sleep: o.sleep}.
		Until(ctx, func(ctx context.Context) (bool, error) {
			state, err := o.power.PowerState(ctx, job.InstanceID)
			if err != nil {
				return false, fmt.Errorf("describe instance: %w", err)
			}
			logger.Debug().Str("state", state).Msg("Observed power state")
			if state == StateRunning {
				res.Readiness = ReadinessRunning
				return true, nil
			}
			res.Readiness = ReadinessStarting
			if state == StateStopped && o.autoStart && !startRequested {
				startRequested = true
				if err := o.starter.Start(ctx, job.InstanceID); err != nil {
					return false, fmt.Errorf("start instance: %w", err)
				}
				res.Started = true
				logger.Info().Msg("Start requested for stopped node")
			}
			return false, nil
		})
	res.PowerPolls = powerRes.Attempts
	res.PowerWait = time.Since(powerStart)

	switch powerRes.Outcome {
	case poll.Failed:
		return res.fail(ReasonUpstreamError, "%v", powerRes.Err)
	case poll.TimedOut:
		return res.fail(ReasonPowerTimeout, "instance %s not running after %d polls (%s)%s",
			job.InstanceID, powerRes.Attempts, o.powerTimeout, cancelSuffix(powerRes.Err))
	}
	logger.Info().Int("polls", res.PowerPolls).Dur("wait", res.PowerWait).Msg("Node running")

	// RUNNING -> AGENT_WAIT -> READY
	agentStart := time.Now()
	agentRes := poll.Loop{Interval: o.interval, Timeout: o.agentTimeout, Sleep: o.sleep}.
		Until(ctx, func(ctx context.Context) (bool, error) {
			online, err := o.agents.Online(ctx, job.InstanceID)
			if err != nil {
				return false, fmt.Errorf("describe instance information: %w", err)
			}
			return online, nil
		})
	res.AgentPolls = agentRes.Attempts
	res.AgentWait = time.Since(agentStart)

	switch agentRes.Outcome {
	case poll.Failed:
		return res.fail(ReasonUpstreamError, "%v", agentRes.Err)
	case poll.TimedOut:
		res.Readiness = ReadinessUnreachable
		return res.fail(ReasonAgentTimeout, "instance %s not registered Online after %d polls (%s)%s",
			job.InstanceID, agentRes.Attempts, o.agentTimeout, cancelSuffix(agentRes.Err))
	}
	res.Readiness = ReadinessRegistered
	logger.Info().Int("polls", res.AgentPolls).Dur("wait", res.AgentWait).Msg("Node registered with SSM")

	// READY -> DISPATCHED
	script := job.Script
	if job.hasInput() {
		url, err := o.presign.PresignGet(ctx, job.InputBucket, job.InputKey, job.InputExpiry)
		if err != nil {
			return res.fail(ReasonUpstreamError, "presign s3://%s/%s: %v", job.InputBucket, job.InputKey, err)
		}
		script, err = job.Script.Bind(job.Placeholder, url)
		if err != nil {
			return res.fail(ReasonConfigError, "%v", err)
		}
		logger.Debug().Str("inputUrl", logging.Redact(url)).Msg("Input URL bound")
	}

	logger.Info().Strs("commands", script.Redacted()).Str("document", res.Document).Msg("Dispatching command")
	handle, err := o.exec.Send(ctx, SendRequest{
		InstanceID: job.InstanceID,
		Document:   res.Document,
		Commands:   script.Commands(),
		Comment:    job.Comment,
	})
	if err != nil {
		return res.fail(ReasonDispatchError, "send command: %v", err)
	}

	res.Dispatched = true
	res.TrackingHandle = handle
	logger.Info().Str("commandId", handle).Msg("Command dispatched")
	return res
}

// validate rejects a job before any network call is made.
func (o *Orchestrator) validate(job Job) error {
	if job.InstanceID == "" {
		return fmt.Errorf("%w: instance id", config.ErrMissing)
	}
	if o.interval <= 0 || o.powerTimeout <= 0 || o.agentTimeout <= 0 {
		return errors.New("poll interval and timeouts must be positive")
	}
	if o.power == nil || o.agents == nil || o.exec == nil {
		return errors.New("power reader, agent registry and executor are required")
	}
	if o.autoStart && o.starter == nil {
		return errors.New("auto start enabled without a power starter")
	}
	if err := job.Script.Validate(); err != nil {
		return err
	}
	if !job.hasInput() {
		return nil
	}
	if job.InputBucket == "" || job.InputKey == "" {
		return fmt.Errorf("%w: input location needs both bucket and key", config.ErrMissing)
	}
	if o.presign == nil {
		return errors.New("input location configured without a presigner")
	}
	if job.InputExpiry <= 0 || job.InputExpiry > config.MaxInputURLExpiry {
		return fmt.Errorf("input URL expiry %s outside (0, %s]", job.InputExpiry, config.MaxInputURLExpiry)
	}
	if !job.Script.Contains(job.Placeholder) {
		return fmt.Errorf("%w: %q", command.ErrPlaceholderNotFound, job.Placeholder)
	}
	return nil
}

func cancelSuffix(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}
