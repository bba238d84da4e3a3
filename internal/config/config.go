// Package config loads per-stage configuration from the environment.
//
// Each Lambda builds the struct it needs once, in init(), and passes it to
// the components it constructs. Malformed values (an unparsable duration)
// are load errors; missing required values are reported by Validate so a
// stage can turn them into a structured error result instead of crashing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissing is wrapped by every "required setting missing" error.
var ErrMissing = errors.New("required setting missing")

// MaxInputURLExpiry bounds the lifetime of the presigned URL handed to the
// render node.
const MaxInputURLExpiry = time.Hour

// Defaults. Paths describe the layout of the render instance.
const (
	DefaultFeedURL         = "https://www.animenewsnetwork.com/newsroom/rss.xml"
	DefaultCategoryKeyword = "anime"
	DefaultPostKey         = "most_recent_post.json"
	DefaultAniListURL      = "https://graphql.anilist.co"
	DefaultImageMagickExe  = "magick"

	DefaultPollInterval   = 10 * time.Second
	DefaultPowerTimeout   = 300 * time.Second
	DefaultAgentTimeout   = 300 * time.Second
	DefaultInputURLExpiry = time.Hour
	DefaultLinkExpiry     = 7 * 24 * time.Hour

	DefaultPlaceholder      = "{{INPUT_URL}}"
	DefaultRenderExecutable = `C:\Program Files\Adobe\Adobe After Effects 2024\Support Files\AfterFX.exe`
	DefaultRenderScript     = `C:\animeutopia\automate_aftereffects.jsx`
	DefaultRenderWorkDir    = `C:\animeutopia`
	DefaultRenderOutputDir  = `C:\animeutopia\output`
	DefaultRenderInputVar   = "ANIMEUTOPIA_POST_URL"
	DefaultVideoFile        = "anime_post.mp4"
	DefaultProjectFile      = "anime_template_exported.aep"
)

// Source looks up a configuration key. os.Getenv satisfies it.
type Source func(key string) string

// Env reads from the process environment.
var Env Source = os.Getenv

// Feed configures the Feed Fetcher.
type Feed struct {
	URL             string
	CategoryKeyword string
	Timeout         time.Duration
}

// Content configures the Content Store.
type Content struct {
	Bucket  string
	PostKey string
}

// Validate reports missing required settings.
func (c Content) Validate() error {
	if c.Bucket == "" {
		return missing("CONTENT_BUCKET")
	}
	return nil
}

// Enrich configures the Metadata Enricher.
type Enrich struct {
	APIURL         string
	ImageMagickExe string
	ImageDir       string
	MinImageBytes  int64
}

// Node identifies the render instance and the readiness polling cadence.
type Node struct {
	InstanceID   string
	PollInterval time.Duration
	PowerTimeout time.Duration
	AgentTimeout time.Duration
	AutoStart    bool
}

// Validate reports missing or out-of-range settings.
func (n Node) Validate() error {
	if n.InstanceID == "" {
		return missing("INSTANCE_ID")
	}
	if n.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", n.PollInterval)
	}
	if n.PowerTimeout <= 0 || n.AgentTimeout <= 0 {
		return fmt.Errorf("POWER_TIMEOUT and AGENT_TIMEOUT must be positive")
	}
	return nil
}

// Render configures the render dispatch.
type Render struct {
	Node
	Content

	InputURLExpiry time.Duration
	Placeholder    string
	InputVar       string
	Executable     string
	Script         string
	WorkDir        string
	OutputDir      string
}

// Publish configures the Artifact Publisher.
type Publish struct {
	Node

	Bucket         string
	OutputDir      string
	VideoFile      string
	ProjectFile    string
	IncludeProject bool
}

// Notify configures the Notifier.
type Notify struct {
	Bucket              string
	LinkExpiry          time.Duration
	SNSTopicARN         string
	TeamsWebhookURL     string
	TeamsWebhookParam   string
	EventBusName        string
	ArtifactWaitTimeout time.Duration
	PollInterval        time.Duration
}

// Validate reports missing required settings.
func (n Notify) Validate() error {
	if n.Bucket == "" {
		return missing("CONTENT_BUCKET")
	}
	if n.SNSTopicARN == "" && n.TeamsWebhookURL == "" && n.TeamsWebhookParam == "" && n.EventBusName == "" {
		return missing("SNS_TOPIC_ARN, TEAMS_WEBHOOK_URL, TEAMS_WEBHOOK_PARAM or EVENT_BUS_NAME")
	}
	return nil
}

// LoadFeed reads Feed settings.
func LoadFeed(src Source) (Feed, error) {
	timeout, err := duration(src, "FEED_TIMEOUT", 30*time.Second)
	if err != nil {
		return Feed{}, err
	}
	return Feed{
		URL:             first(src, DefaultFeedURL, "FEED_URL"),
		CategoryKeyword: first(src, DefaultCategoryKeyword, "CATEGORY_KEYWORD"),
		Timeout:         timeout,
	}, nil
}

// LoadContent reads Content settings. TARGET_BUCKET and BUCKET_NAME are
// accepted for compatibility with older deployments.
func LoadContent(src Source) Content {
	return Content{
		Bucket:  first(src, "", "CONTENT_BUCKET", "TARGET_BUCKET", "BUCKET_NAME"),
		PostKey: first(src, DefaultPostKey, "POST_KEY"),
	}
}

// LoadEnrich reads Enrich settings.
func LoadEnrich(src Source) (Enrich, error) {
	minBytes := int64(1000)
	if v := src("MIN_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Enrich{}, fmt.Errorf("invalid MIN_IMAGE_BYTES: %w", err)
		}
		minBytes = n
	}
	return Enrich{
		APIURL:         first(src, DefaultAniListURL, "ANILIST_API_URL"),
		ImageMagickExe: first(src, DefaultImageMagickExe, "IMAGE_MAGICK_EXE"),
		ImageDir:       first(src, os.TempDir(), "IMAGE_DIR"),
		MinImageBytes:  minBytes,
	}, nil
}

// LoadNode reads Node settings. EC2_INSTANCE_ID is accepted as a fallback.
func LoadNode(src Source) (Node, error) {
	interval, err := duration(src, "POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return Node{}, err
	}
	powerTimeout, err := duration(src, "POWER_TIMEOUT", DefaultPowerTimeout)
	if err != nil {
		return Node{}, err
	}
	agentTimeout, err := duration(src, "AGENT_TIMEOUT", DefaultAgentTimeout)
	if err != nil {
		return Node{}, err
	}
	autoStart, err := boolean(src, "NODE_AUTO_START", false)
	if err != nil {
		return Node{}, err
	}
	return Node{
		InstanceID:   first(src, "", "INSTANCE_ID", "EC2_INSTANCE_ID"),
		PollInterval: interval,
		PowerTimeout: powerTimeout,
		AgentTimeout: agentTimeout,
		AutoStart:    autoStart,
	}, nil
}

// LoadRender reads Render settings.
func LoadRender(src Source) (Render, error) {
	node, err := LoadNode(src)
	if err != nil {
		return Render{}, err
	}
	expiry, err := duration(src, "INPUT_URL_EXPIRY", DefaultInputURLExpiry)
	if err != nil {
		return Render{}, err
	}
	return Render{
		Node:           node,
		Content:        LoadContent(src),
		InputURLExpiry: expiry,
		Placeholder:    first(src, DefaultPlaceholder, "INPUT_URL_PLACEHOLDER"),
		InputVar:       first(src, DefaultRenderInputVar, "RENDER_INPUT_VAR"),
		Executable:     first(src, DefaultRenderExecutable, "RENDER_EXECUTABLE"),
		Script:         first(src, DefaultRenderScript, "RENDER_SCRIPT"),
		WorkDir:        first(src, DefaultRenderWorkDir, "RENDER_WORKDIR"),
		OutputDir:      first(src, DefaultRenderOutputDir, "RENDER_OUTPUT_DIR"),
	}, nil
}

// LoadPublish reads Publish settings.
func LoadPublish(src Source) (Publish, error) {
	node, err := LoadNode(src)
	if err != nil {
		return Publish{}, err
	}
	includeProject, err := boolean(src, "PUBLISH_PROJECT", true)
	if err != nil {
		return Publish{}, err
	}
	return Publish{
		Node:           node,
		Bucket:         LoadContent(src).Bucket,
		OutputDir:      first(src, DefaultRenderOutputDir, "RENDER_OUTPUT_DIR"),
		VideoFile:      first(src, DefaultVideoFile, "VIDEO_FILE"),
		ProjectFile:    first(src, DefaultProjectFile, "PROJECT_FILE"),
		IncludeProject: includeProject,
	}, nil
}

// LoadNotify reads Notify settings.
func LoadNotify(src Source) (Notify, error) {
	linkExpiry, err := duration(src, "LINK_EXPIRY", DefaultLinkExpiry)
	if err != nil {
		return Notify{}, err
	}
	wait, err := duration(src, "ARTIFACT_WAIT_TIMEOUT", 0)
	if err != nil {
		return Notify{}, err
	}
	interval, err := duration(src, "POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return Notify{}, err
	}
	return Notify{
		Bucket:              LoadContent(src).Bucket,
		LinkExpiry:          linkExpiry,
		SNSTopicARN:         src("SNS_TOPIC_ARN"),
		TeamsWebhookURL:     src("TEAMS_WEBHOOK_URL"),
		TeamsWebhookParam:   src("TEAMS_WEBHOOK_PARAM"),
		EventBusName:        src("EVENT_BUS_NAME"),
		ArtifactWaitTimeout: wait,
		PollInterval:        interval,
	}, nil
}

func missing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissing, key)
}

// first returns the first non-empty value among keys, or def.
func first(src Source, def string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(src(k)); v != "" {
			return v
		}
	}
	return def
}

func duration(src Source, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(src(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		if secs, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolean(src Source, key string, def bool) (bool, error) {
	v := strings.TrimSpace(src(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
