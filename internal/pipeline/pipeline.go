// Package pipeline defines the records and payloads that flow between the
// stage Lambdas. Stages never share memory: the Step Functions state machine
// passes an Event from one stage's output to the next stage's input, and the
// Post snapshot is persisted to S3 by the content store.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Stage names, used as the run ledger sort key, the EMF Stage dimension and
// the "stage" log field.
const (
	StageFetch    = "fetch-rss"
	StageProcess  = "process-content"
	StageStore    = "store-data"
	StageStart    = "start-instance"
	StageRender   = "render-video"
	StageSave     = "save-video"
	StageNotify   = "notify-post"
	StageStop     = "stop-instance"
	StageOperator = "operator"
)

// Status values returned by the stages. The state machine branches on these.
const (
	StatusPostFound       = "anime_post_found"
	StatusNoPost          = "no_post"
	StatusProcessed       = "processed"
	StatusStored          = "stored"
	StatusRenderTriggered = "video_render_triggered"
	StatusUploadTriggered = "video_upload_triggered"
	StatusMessagePosted   = "message_posted"
	StatusStarted         = "instance_started"
	StatusStopped         = "instance_stopped"
	StatusError           = "error"
)

// Post is the enriched news item. ImageURL is the remote cover art found by
// the enricher; ImageRef is the S3 key of the normalized copy.
type Post struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
	Category    string `json:"category"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ImageRef    string `json:"imageRef,omitempty"`
}

// Event is the payload every stage accepts. Fields a stage does not use are
// passed through untouched by the state machine.
type Event struct {
	RunID     string     `json:"runId,omitempty"`
	Status    string     `json:"status,omitempty"`
	Post      *Post      `json:"post,omitempty"`
	Artifacts *Artifacts `json:"artifacts,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Failed returns a copy of e with status "error" and the error text.
func (e Event) Failed(err error) Event {
	e.Status = StatusError
	e.Error = err.Error()
	return e
}

// With returns a copy of e with the given status and no error.
func (e Event) With(status string) Event {
	e.Status = status
	e.Error = ""
	return e
}

// Artifacts locates the published render outputs of a run.
type Artifacts struct {
	Bucket     string `json:"bucket"`
	VideoKey   string `json:"videoKey"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// NewRunID mints a run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// EnsureRunID returns id, or a fresh run ID when id is empty. Stages invoked
// by hand (without the state machine) still get a correlatable ID.
func EnsureRunID(id string) string {
	if strings.TrimSpace(id) == "" {
		return NewRunID()
	}
	return id
}

// VideoKey is the S3 key of the rendered video for a run.
func VideoKey(runID, file string) string {
	return fmt.Sprintf("outputs/%s/%s", runID, file)
}

// ProjectKey is the S3 key of the exported After Effects project for a run.
func ProjectKey(runID, file string) string {
	return fmt.Sprintf("exports/%s/%s", runID, file)
}

// CoverKey is the S3 key of the normalized cover image for a run.
func CoverKey(runID, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("images/%s/cover%s", runID, ext)
}
