package render

import (
	"fmt"
	"time"
)

// Readiness is the last observed state of the render node. It is recomputed
// on every run and never persisted.
type Readiness string

const (
	ReadinessUnknown     Readiness = "unknown"
	ReadinessStarting    Readiness = "starting"
	ReadinessRunning     Readiness = "running"
	ReadinessRegistered  Readiness = "registered"
	ReadinessUnreachable Readiness = "unreachable"
)

// Reason classifies a run that did not dispatch.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonPowerTimeout  Reason = "PowerTimeout"
	ReasonAgentTimeout  Reason = "AgentTimeout"
	ReasonConfigError   Reason = "ConfigError"
	ReasonDispatchError Reason = "DispatchError"
	ReasonUpstreamError Reason = "UpstreamError"
)

// Result is the outcome of one Run. Dispatched results carry the SSM command
// ID in TrackingHandle; failed results carry Reason and Detail.
type Result struct {
	Dispatched     bool      `json:"dispatched"`
	TrackingHandle string    `json:"trackingHandle,omitempty"`
	Reason         Reason    `json:"reason,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	Readiness      Readiness `json:"readiness"`
	Document       string    `json:"document,omitempty"`

	PowerPolls int           `json:"powerPolls"`
	AgentPolls int           `json:"agentPolls"`
	PowerWait  time.Duration `json:"-"`
	AgentWait  time.Duration `json:"-"`
	Started    bool          `json:"started,omitempty"`
}

// Err returns nil for a dispatched result and a descriptive error otherwise.
func (r Result) Err() error {
	if r.Dispatched {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Reason, r.Detail)
}

func (r *Result) fail(reason Reason, format string, args ...any) Result {
	r.Dispatched = false
	r.Reason = reason
	r.Detail = fmt.Sprintf(format, args...)
	return *r
}
