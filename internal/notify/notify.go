package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/poll"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
)

// ErrArtifactMissing is returned when the video does not appear in S3 before
// the wait timeout.
var ErrArtifactMissing = errors.New("artifact not found")

// ChannelError is one channel's delivery failure.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string { return e.Channel + ": " + e.Err.Error() }

func (e *ChannelError) Unwrap() error { return e.Err }

// Result reports what was sent.
type Result struct {
	VideoKey   string   `json:"videoKey"`
	ProjectKey string   `json:"projectKey,omitempty"`
	Channels   []string `json:"channels"`
	VideoURL   string   `json:"-"`
	ProjectURL string   `json:"-"`
}

// Notifier presigns artifact links and fans a Message out to its channels.
type Notifier struct {
	presign  s3util.PresignAPI
	head     s3util.HeadAPI
	cfg      config.Notify
	channels []Channel
	sleep    poll.SleepFunc
}

// New validates cfg and builds a Notifier. head may be nil when
// cfg.ArtifactWaitTimeout is zero.
func New(cfg config.Notify, presign s3util.PresignAPI, head s3util.HeadAPI, channels ...Channel) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: notification channel", config.ErrMissing)
	}
	if cfg.LinkExpiry <= 0 {
		return nil, fmt.Errorf("LINK_EXPIRY must be positive")
	}
	if cfg.ArtifactWaitTimeout > 0 && (head == nil || cfg.PollInterval <= 0) {
		return nil, fmt.Errorf("artifact wait needs an S3 client and a positive POLL_INTERVAL")
	}
	return &Notifier{presign: presign, head: head, cfg: cfg, channels: channels, sleep: poll.Sleep}, nil
}

// WithSleep replaces the wait between artifact polls.
func (n *Notifier) WithSleep(sleep poll.SleepFunc) *Notifier {
	n.sleep = sleep
	return n
}

// Notify sends one message for the run. Every channel is attempted; the
// returned error joins a *ChannelError per failed channel.
func (n *Notifier) Notify(ctx context.Context, runID string, post *pipeline.Post, a pipeline.Artifacts) (Result, error) {
	bucket := a.Bucket
	if bucket == "" {
		bucket = n.cfg.Bucket
	}
	res := Result{VideoKey: a.VideoKey, ProjectKey: a.ProjectKey}
	if a.VideoKey == "" {
		return res, fmt.Errorf("%w: video key", config.ErrMissing)
	}

	if n.cfg.ArtifactWaitTimeout > 0 {
		if err := n.waitFor(ctx, bucket, a.VideoKey); err != nil {
			return res, err
		}
	}

	var err error
	res.VideoURL, err = s3util.GeneratePresignedURL(ctx, n.presign, bucket, a.VideoKey, n.cfg.LinkExpiry)
	if err != nil {
		return res, fmt.Errorf("presign video: %w", err)
	}
	if a.ProjectKey != "" {
		res.ProjectURL, err = s3util.GeneratePresignedURL(ctx, n.presign, bucket, a.ProjectKey, n.cfg.LinkExpiry)
		if err != nil {
			return res, fmt.Errorf("presign project: %w", err)
		}
	}

	msg := Message{
		RunID:      runID,
		VideoKey:   a.VideoKey,
		ProjectKey: a.ProjectKey,
		VideoURL:   res.VideoURL,
		ProjectURL: res.ProjectURL,
	}
	if post != nil {
		msg.Title = post.Title
		msg.Link = post.Link
	}

	var errs []error
	for _, ch := range n.channels {
		start := time.Now()
		if err := ch.Send(ctx, msg); err != nil {
			log.Error().Err(err).Str("channel", ch.Name()).Str("runId", runID).Msg("Notification failed")
			errs = append(errs, &ChannelError{Channel: ch.Name(), Err: err})
			continue
		}
		res.Channels = append(res.Channels, ch.Name())
		log.Info().Str("channel", ch.Name()).Str("runId", runID).Dur("duration", time.Since(start)).Msg("Notification sent")
	}
	return res, errors.Join(errs...)
}

func (n *Notifier) waitFor(ctx context.Context, bucket, key string) error {
	r := poll.Loop{Interval: n.cfg.PollInterval, Timeout: n.cfg.ArtifactWaitTimeout, Sleep: n.sleep}.
		Until(ctx, func(ctx context.Context) (bool, error) {
			return s3util.ObjectExists(ctx, n.head, bucket, key)
		})
	switch r.Outcome {
	case poll.Satisfied:
		log.Debug().Str("key", key).Int("polls", r.Attempts).Msg("Artifact present")
		return nil
	case poll.Failed:
		return fmt.Errorf("check s3://%s/%s: %w", bucket, key, r.Err)
	default:
		return fmt.Errorf("%w: s3://%s/%s after %d polls", ErrArtifactMissing, bucket, key, r.Attempts)
	}
}
