package contentstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-longoria/socialmedia-automation/internal/config"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
	"github.com/ryan-longoria/socialmedia-automation/internal/s3util"
)

type memS3 struct {
	objects map[string][]byte
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	m.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestSaveLoadRoundTripAndLastWriteWins(t *testing.T) {
	mem := &memS3{objects: map[string][]byte{}}
	store := New(mem, config.Content{Bucket: "animeutopia"})

	first := pipeline.Post{Title: "First", Link: "https://ann/1", Category: "Anime"}
	second := pipeline.Post{Title: "Frieren", Link: "https://ann/2", Category: "Anime", ImageRef: "images/r1/cover.jpg"}

	require.NoError(t, store.Save(context.Background(), first))
	require.NoError(t, store.Save(context.Background(), second))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.Len(t, mem.objects, 1)

	raw := string(mem.objects["animeutopia/most_recent_post.json"])
	assert.True(t, strings.Contains(raw, "\n    \"title\": \"Frieren\""), "expected 4-space indent, got %s", raw)
}

func TestMissingBucket(t *testing.T) {
	store := New(&memS3{objects: map[string][]byte{}}, config.Content{})
	err := store.Save(context.Background(), pipeline.Post{})
	assert.True(t, errors.Is(err, config.ErrMissing))
	_, err = store.Load(context.Background())
	assert.True(t, errors.Is(err, config.ErrMissing))
}

func TestLoad_NothingStored(t *testing.T) {
	store := New(&memS3{objects: map[string][]byte{}}, config.Content{Bucket: "b", PostKey: "custom.json"})
	assert.Equal(t, "custom.json", store.Key())
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, s3util.ErrNotFound)
}
