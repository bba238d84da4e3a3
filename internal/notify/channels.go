package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// Channel delivers a Message.
type Channel interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel publishes the plain-text message to a topic.
type SNSChannel struct {
	client   SNSAPI
	topicARN string
}

// NewSNSChannel creates an SNSChannel.
func NewSNSChannel(client SNSAPI, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

func (c *SNSChannel) Name() string { return "sns" }

func (c *SNSChannel) Send(ctx context.Context, m Message) error {
	out, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(Subject),
		Message:  aws.String(m.Text()),
	})
	if err != nil {
		return fmt.Errorf("SNS Publish: %w", err)
	}
	log.Debug().Str("topicArn", c.topicARN).Str("messageId", aws.ToString(out.MessageId)).Msg("SNS message published")
	return nil
}

const teamsTimeout = 30 * time.Second

// TeamsChannel posts to a Microsoft Teams incoming webhook.
type TeamsChannel struct {
	httpClient *http.Client
	webhookURL string
}

// NewTeamsChannel creates a TeamsChannel. The URL is a secret and is never
// logged.
func NewTeamsChannel(webhookURL string) *TeamsChannel {
	return &TeamsChannel{
		httpClient: &http.Client{Timeout: teamsTimeout},
		webhookURL: webhookURL,
	}
}

func (c *TeamsChannel) Name() string { return "teams" }

type teamsPayload struct {
	Text string `json:"text"`
}

func (c *TeamsChannel) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(teamsPayload{Text: "**" + Subject + "**\n\n" + m.Markdown()})
	if err != nil {
		return fmt.Errorf("marshal teams payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create teams request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The error text from net/http embeds the URL.
		return fmt.Errorf("teams webhook request failed")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("teams webhook HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Event source and detail type of the published event.
const (
	EventSource     = "animeutopia.pipeline"
	EventDetailType = "PostPublished"
)

// PostPublished is the detail of the EventBridge event. It carries S3 keys,
// not presigned URLs.
type PostPublished struct {
	RunID      string `json:"runId"`
	Title      string `json:"title,omitempty"`
	Link       string `json:"link,omitempty"`
	VideoKey   string `json:"videoKey"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// EventChannel emits a PostPublished event to a bus.
type EventChannel struct {
	client  EventBridgeAPI
	busName string
}

// NewEventChannel creates an EventChannel.
func NewEventChannel(client EventBridgeAPI, busName string) *EventChannel {
	return &EventChannel{client: client, busName: busName}
}

func (c *EventChannel) Name() string { return "eventbridge" }

func (c *EventChannel) Send(ctx context.Context, m Message) error {
	detail, err := json.Marshal(PostPublished{
		RunID:      m.RunID,
		Title:      m.Title,
		Link:       m.Link,
		VideoKey:   m.VideoKey,
		ProjectKey: m.ProjectKey,
	})
	if err != nil {
		return fmt.Errorf("marshal PostPublished: %w", err)
	}

	result, err := c.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(c.busName),
				Source:       aws.String(EventSource),
				DetailType:   aws.String(EventDetailType),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", result.FailedEntryCount)
	}
	log.Debug().Str("runId", m.RunID).Str("eventBus", c.busName).Msg("PostPublished emitted to EventBridge")
	return nil
}
