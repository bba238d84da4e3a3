// Package remote adapts the EC2 and SSM APIs to the render node operations
// the pipeline needs: power state, start and stop, agent registration,
// command submission and command status.
package remote

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog/log"
)

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// Power reads and changes the power state of instances.
type Power struct {
	client EC2API
}

// NewPower wraps an EC2 client.
func NewPower(client EC2API) *Power {
	return &Power{client: client}
}

// PowerState returns the instance state name ("pending", "running", ...).
func (p *Power) PowerState(ctx context.Context, instanceID string) (string, error) {
	out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("EC2 DescribeInstances: %w", err)
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if inst.InstanceId != nil && *inst.InstanceId == instanceID && inst.State != nil {
				return string(inst.State.Name), nil
			}
		}
	}
	return "", fmt.Errorf("instance %s not found", instanceID)
}

// Transition is the state change reported by a start or stop request.
type Transition struct {
	InstanceID string `json:"instanceId"`
	Previous   string `json:"previousState"`
	Current    string `json:"currentState"`
}

// Start requests that the instance start. Starting a running instance is a
// no-op on the EC2 side.
func (p *Power) Start(ctx context.Context, instanceID string) error {
	_, err := p.StartInstance(ctx, instanceID)
	return err
}

// StartInstance starts the instance and reports the transition.
func (p *Power) StartInstance(ctx context.Context, instanceID string) (Transition, error) {
	out, err := p.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return Transition{}, fmt.Errorf("EC2 StartInstances: %w", err)
	}
	t := Transition{InstanceID: instanceID}
	for _, c := range out.StartingInstances {
		if c.PreviousState != nil {
			t.Previous = string(c.PreviousState.Name)
		}
		if c.CurrentState != nil {
			t.Current = string(c.CurrentState.Name)
		}
	}
	log.Info().Str("instanceId", instanceID).Str("previous", t.Previous).Str("current", t.Current).Msg("Instance start requested")
	return t, nil
}

// StopInstance stops the instance and reports the transition.
func (p *Power) StopInstance(ctx context.Context, instanceID string) (Transition, error) {
	out, err := p.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return Transition{}, fmt.Errorf("EC2 StopInstances: %w", err)
	}
	t := Transition{InstanceID: instanceID}
	for _, c := range out.StoppingInstances {
		if c.PreviousState != nil {
			t.Previous = string(c.PreviousState.Name)
		}
		if c.CurrentState != nil {
			t.Current = string(c.CurrentState.Name)
		}
	}
	log.Info().Str("instanceId", instanceID).Str("previous", t.Previous).Str("current", t.Current).Msg("Instance stop requested")
	return t, nil
}
