// Package contentstore persists the enriched post as a JSON snapshot in S3.
// There is one snapshot per bucket; every save replaces it.
package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
)

// API is the subset of the S3 client the store needs.
type API interface {
	s3util.PutAPI
	s3util.GetAPI
}

// Store reads and writes the post snapshot.
type Store struct {
	client API
	bucket string
	key    string
}

// New creates a Store. An empty key uses config.DefaultPostKey.
func New(client API, cfg config.Content) *Store {
	key := cfg.PostKey
	if key == "" {
		key = config.DefaultPostKey
	}
	return &Store{client: client, bucket: cfg.Bucket, key: key}
}

// Bucket returns the content bucket.
func (s *Store) Bucket() string { return s.bucket }

// Key returns the snapshot key.
func (s *Store) Key() string { return s.key }

// Save writes post as 4-space-indented JSON. Last write wins.
func (s *Store) Save(ctx context.Context, post pipeline.Post) error {
	if s.bucket == "" {
		return fmt.Errorf("%w: CONTENT_BUCKET", config.ErrMissing)
	}
	body, err := json.MarshalIndent(post, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	if err := s3util.PutBytes(ctx, s.client, s.bucket, s.key, body, "application/json"); err != nil {
		return err
	}
	log.Info().Str("bucket", s.bucket).Str("key", s.key).Str("title", post.Title).Msg("Post snapshot stored")
	return nil
}

// Load reads the snapshot back.
func (s *Store) Load(ctx context.Context) (pipeline.Post, error) {
	if s.bucket == "" {
		return pipeline.Post{}, fmt.Errorf("%w: CONTENT_BUCKET", config.ErrMissing)
	}
	data, err := s3util.GetBytes(ctx, s.client, s.bucket, s.key)
	if err != nil {
		if errors.Is(err, s3util.ErrNotFound) {
			return pipeline.Post{}, fmt.Errorf("no stored post: %w", err)
		}
		return pipeline.Post{}, err
	}
	var post pipeline.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return pipeline.Post{}, fmt.Errorf("parse stored post: %w", err)
	}
	return post, nil
}
