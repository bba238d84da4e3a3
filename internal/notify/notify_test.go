package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

type fakePresign struct {
	expiries []time.Duration
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	f.expiries = append(f.expiries, opts.Expires)
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + "/" + *in.Key + "?sig"}, nil
}

// fakeHead reports the object missing for the first `missing` calls.
type fakeHead struct {
	missing int
	calls   int
	err     error
}

func (f *fakeHead) HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.missing {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

type fakeSNS struct {
	in  *sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

type fakeEvents struct {
	in     *eventbridge.PutEventsInput
	failed bool
}

func (f *fakeEvents) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.in = in
	if f.failed {
		return &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []eventbridgetypes.PutEventsResultEntry{{
				ErrorCode:    aws.String("InternalFailure"),
				ErrorMessage: aws.String("try again"),
			}},
		}, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func notifyConfig() config.Notify {
	return config.Notify{
		Bucket:       "content",
		LinkExpiry:   config.DefaultLinkExpiry,
		SNSTopicARN:  "arn:aws:sns:us-east-2:123456789012:animeutopia",
		PollInterval: time.Second,
	}
}

func artifacts() pipeline.Artifacts {
	return pipeline.Artifacts{
		Bucket:     "content",
		VideoKey:   "outputs/run-1/anime_post.mp4",
		ProjectKey: "exports/run-1/anime_template_exported.aep",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestNotify_SNS(t *testing.T) {
	ps := &fakePresign{}
	ch := &fakeSNS{}
	n, err := New(notifyConfig(), ps, nil, NewSNSChannel(ch, "arn:topic"))
	require.NoError(t, err)

	res, err := n.Notify(context.Background(), "run-1", &pipeline.Post{Title: "Some Show"}, artifacts())
	require.NoError(t, err)
	assert.Equal(t, []string{"sns"}, res.Channels)
	assert.Equal(t, []time.Duration{7 * 24 * time.Hour, 7 * 24 * time.Hour}, ps.expiries)

	require.NotNil(t, ch.in)
	assert.Equal(t, "New AnimeUtopia Post is Ready!", *ch.in.Subject)
	assert.Equal(t, "arn:topic", *ch.in.TopicArn)
	assert.Equal(t,
		"Your new post has been processed.\n\n"+
			"Title: Some Show\n\n"+
			"Video URL: https://content/outputs/run-1/anime_post.mp4?sig\n\n"+
			"After Effects Project URL: https://content/exports/run-1/anime_template_exported.aep?sig",
		*ch.in.Message)
}

func TestNotify_Teams(t *testing.T) {
	var got teamsPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte("1"))
	}))
	defer server.Close()

	cfg := notifyConfig()
	cfg.SNSTopicARN = ""
	cfg.TeamsWebhookURL = server.URL
	n, err := New(cfg, &fakePresign{}, nil, NewTeamsChannel(server.URL))
	require.NoError(t, err)

	res, err := n.Notify(context.Background(), "run-1", nil, pipeline.Artifacts{VideoKey: "outputs/run-1/anime_post.mp4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"teams"}, res.Channels)
	assert.Equal(t,
		"**New AnimeUtopia Post is Ready!**\n\nYour new post has been processed!\n\n"+
			"**Video URL**: https://content/outputs/run-1/anime_post.mp4?sig",
		got.Text)
}

func TestTeamsChannel_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid webhook request - Empty Payload", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewTeamsChannel(server.URL).Send(context.Background(), Message{VideoURL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestNotify_EventBridge(t *testing.T) {
	ev := &fakeEvents{}
	cfg := notifyConfig()
	cfg.EventBusName = "animeutopia"
	n, err := New(cfg, &fakePresign{}, nil, NewEventChannel(ev, "animeutopia"))
	require.NoError(t, err)

	_, err = n.Notify(context.Background(), "run-1", &pipeline.Post{Title: "Some Show", Link: "https://ann/1"}, artifacts())
	require.NoError(t, err)

	require.Len(t, ev.in.Entries, 1)
	entry := ev.in.Entries[0]
	assert.Equal(t, "PostPublished", *entry.DetailType)
	assert.Equal(t, "animeutopia", *entry.EventBusName)
	var detail PostPublished
	require.NoError(t, json.Unmarshal([]byte(*entry.Detail), &detail))
	assert.Equal(t, "run-1", detail.RunID)
	assert.Equal(t, "outputs/run-1/anime_post.mp4", detail.VideoKey)
	assert.NotContains(t, *entry.Detail, "?sig", "events carry keys, not presigned URLs")
}

func TestNotify_ChannelFailureFailsStage(t *testing.T) {
	ev := &fakeEvents{failed: true}
	sn := &fakeSNS{}
	cfg := notifyConfig()
	cfg.EventBusName = "bus"
	n, err := New(cfg, &fakePresign{}, nil, NewEventChannel(ev, "bus"), NewSNSChannel(sn, "arn:topic"))
	require.NoError(t, err)

	res, err := n.Notify(context.Background(), "run-1", nil, artifacts())
	require.Error(t, err)
	var chErr *ChannelError
	require.True(t, errors.As(err, &chErr))
	assert.Equal(t, "eventbridge", chErr.Channel)
	assert.Contains(t, err.Error(), "InternalFailure")
	assert.Equal(t, []string{"sns"}, res.Channels, "remaining channels are still attempted")
	assert.NotNil(t, sn.in)
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Notify)
		channels []Channel
	}{
		{"no channels configured", func(c *config.Notify) { c.SNSTopicARN = "" }, nil},
		{"no channel instances", func(c *config.Notify) {}, nil},
		{"no bucket", func(c *config.Notify) { c.Bucket = "" }, []Channel{NewSNSChannel(&fakeSNS{}, "t")}},
		{"wait without head client", func(c *config.Notify) { c.ArtifactWaitTimeout = time.Minute }, []Channel{NewSNSChannel(&fakeSNS{}, "t")}},
		{"zero link expiry", func(c *config.Notify) { c.LinkExpiry = 0 }, []Channel{NewSNSChannel(&fakeSNS{}, "t")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := notifyConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, &fakePresign{}, nil, tt.channels...)
			assert.Error(t, err)
		})
	}
}

func TestNotify_MissingVideoKey(t *testing.T) {
	n, err := New(notifyConfig(), &fakePresign{}, nil, NewSNSChannel(&fakeSNS{}, "t"))
	require.NoError(t, err)
	_, err = n.Notify(context.Background(), "run-1", nil, pipeline.Artifacts{})
	assert.ErrorIs(t, err, config.ErrMissing)
}

func TestNotify_WaitsForArtifact(t *testing.T) {
	head := &fakeHead{missing: 2}
	sn := &fakeSNS{}
	cfg := notifyConfig()
	cfg.ArtifactWaitTimeout = 10 * time.Second
	n, err := New(cfg, &fakePresign{}, head, NewSNSChannel(sn, "t"))
	require.NoError(t, err)

	_, err = n.WithSleep(noSleep).Notify(context.Background(), "run-1", nil, artifacts())
	require.NoError(t, err)
	assert.Equal(t, 3, head.calls)
}

func TestNotify_ArtifactNeverAppears(t *testing.T) {
	head := &fakeHead{missing: 100}
	sn := &fakeSNS{}
	cfg := notifyConfig()
	cfg.ArtifactWaitTimeout = 5 * time.Second
	n, err := New(cfg, &fakePresign{}, head, NewSNSChannel(sn, "t"))
	require.NoError(t, err)

	_, err = n.WithSleep(noSleep).Notify(context.Background(), "run-1", nil, artifacts())
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.Equal(t, 5, head.calls)
	assert.Nil(t, sn.in, "nothing is sent for a missing video")
}

func TestNotify_ArtifactCheckFails(t *testing.T) {
	head := &fakeHead{err: errors.New("AccessDenied")}
	cfg := notifyConfig()
	cfg.ArtifactWaitTimeout = 5 * time.Second
	n, err := New(cfg, &fakePresign{}, head, NewSNSChannel(&fakeSNS{}, "t"))
	require.NoError(t, err)

	_, err = n.WithSleep(noSleep).Notify(context.Background(), "run-1", nil, artifacts())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "AccessDenied"))
	assert.Equal(t, 1, head.calls)
}
