package render

import (
	"context"
	"time"
)

// EC2 instance state names the orchestrator reacts to.
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// PowerReader reports the power state name of an instance ("pending",
// "running", "stopped", ...).
type PowerReader interface {
	PowerState(ctx context.Context, instanceID string) (string, error)
}

// PowerStarter starts a stopped instance. Only used when auto start is on.
type PowerStarter interface {
	Start(ctx context.Context, instanceID string) error
}

// AgentRegistry reports whether an instance is registered with the
// management agent and its ping status is Online.
type AgentRegistry interface {
	Online(ctx context.Context, instanceID string) (bool, error)
}

// Executor submits commands to an instance and returns a tracking handle.
// It does not wait for the commands to finish.
type Executor interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// SendRequest is one remote execution submission.
type SendRequest struct {
	InstanceID string
	Document   string
	Commands   []string
	Comment    string
}

// Presigner mints a read-only URL for an object.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
