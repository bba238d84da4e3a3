// Package notify tells people and downstream systems that a post is ready.
//
// The Notifier presigns download links for the published artifacts,
// optionally waits for the video to appear in S3, then fans one Message out
// to every configured Channel: an SNS topic (email), a Microsoft Teams
// incoming webhook and an EventBridge bus.
package notify

import (
	"fmt"
	"strings"
)

// Subject is the headline of every notification.
const Subject = "New AnimeUtopia Post is Ready!"

// Message is what a channel delivers.
type Message struct {
	RunID      string
	Title      string
	Link       string
	VideoKey   string
	ProjectKey string
	VideoURL   string
	ProjectURL string
}

// Text is the plain-text body used for email.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString("Your new post has been processed.\n\n")
	if m.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", m.Title)
	}
	fmt.Fprintf(&b, "Video URL: %s", m.VideoURL)
	if m.ProjectURL != "" {
		fmt.Fprintf(&b, "\n\nAfter Effects Project URL: %s", m.ProjectURL)
	}
	return b.String()
}

// Markdown is the body used for chat, with bold labels.
func (m Message) Markdown() string {
	var b strings.Builder
	b.WriteString("Your new post has been processed!\n\n")
	if m.Title != "" {
		fmt.Fprintf(&b, "**Title**: %s\n\n", m.Title)
	}
	fmt.Fprintf(&b, "**Video URL**: %s", m.VideoURL)
	if m.ProjectURL != "" {
		fmt.Fprintf(&b, "\n\n**After Effects Project URL**: %s", m.ProjectURL)
	}
	return b.String()
}
