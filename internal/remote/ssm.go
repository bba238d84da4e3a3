package remote

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/render"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	ssm.DescribeInstanceInformationAPIClient
	SendCommand(ctx context.Context, in *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, in *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
}

// Agents checks SSM agent registration.
type Agents struct {
	client SSMAPI
}

// NewAgents wraps an SSM client.
func NewAgents(client SSMAPI) *Agents {
	return &Agents{client: client}
}

// Online reports whether instanceID is registered with ping status Online.
// The registry is paged through in full and matched client-side.
func (a *Agents) Online(ctx context.Context, instanceID string) (bool, error) {
	p := ssm.NewDescribeInstanceInformationPaginator(a.client, &ssm.DescribeInstanceInformationInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("SSM DescribeInstanceInformation: %w", err)
		}
		for _, info := range page.InstanceInformationList {
			if aws.ToString(info.InstanceId) != instanceID {
				continue
			}
			log.Debug().Str("instanceId", instanceID).Str("pingStatus", string(info.PingStatus)).Msg("Agent registry entry")
			return info.PingStatus == ssmtypes.PingStatusOnline, nil
		}
	}
	return false, nil
}

// Executor submits Run Command requests.
type Executor struct {
	client         SSMAPI
	timeoutSeconds int32
}

// NewExecutor wraps an SSM client. timeoutSeconds bounds how long SSM waits
// for the instance to pick the command up (0 leaves the service default).
func NewExecutor(client SSMAPI, timeoutSeconds int32) *Executor {
	return &Executor{client: client, timeoutSeconds: timeoutSeconds}
}

// Send submits the commands and returns the SSM command ID.
func (e *Executor) Send(ctx context.Context, req render.SendRequest) (string, error) {
	in := &ssm.SendCommandInput{
		InstanceIds:  []string{req.InstanceID},
		DocumentName: aws.String(req.Document),
		Parameters:   map[string][]string{"commands": req.Commands},
	}
	if req.Comment != "" {
		in.Comment = aws.String(truncateComment(req.Comment))
	}
	if e.timeoutSeconds > 0 {
		in.TimeoutSeconds = aws.Int32(e.timeoutSeconds)
	}
	out, err := e.client.SendCommand(ctx, in)
	if err != nil {
		return "", fmt.Errorf("SSM SendCommand: %w", err)
	}
	if out.Command == nil || out.Command.CommandId == nil {
		return "", fmt.Errorf("SSM SendCommand: response has no command id")
	}
	return *out.Command.CommandId, nil
}

// Invocation is the status of a command on one instance.
type Invocation struct {
	CommandID  string `json:"commandId"`
	InstanceID string `json:"instanceId"`
	Status     string `json:"status"`
	ExitCode   int32  `json:"exitCode"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Invocation fetches the status and output of a dispatched command.
func (e *Executor) Invocation(ctx context.Context, commandID, instanceID string) (Invocation, error) {
	out, err := e.client.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(commandID),
		InstanceId: aws.String(instanceID),
	})
	if err != nil {
		return Invocation{}, fmt.Errorf("SSM GetCommandInvocation: %w", err)
	}
	return Invocation{
		CommandID:  commandID,
		InstanceID: instanceID,
		Status:     string(out.Status),
		ExitCode:   out.ResponseCode,
		Stdout:     aws.ToString(out.StandardOutputContent),
		Stderr:     aws.ToString(out.StandardErrorContent),
	}, nil
}

// SSM limits the comment to 100 characters.
func truncateComment(s string) string {
	if len(s) <= 100 {
		return s
	}
	return s[:100]
}
