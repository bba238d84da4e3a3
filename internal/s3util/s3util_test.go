package s3util

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[*in.Key] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestPutAndGetBytes(t *testing.T) {
	f := &fakeS3{}
	require.NoError(t, PutBytes(context.Background(), f, "bucket", "k.json", []byte(`{"a":1}`), "application/json"))
	assert.Equal(t, "Project=animeutopia", *f.puts[0].Tagging)
	assert.Equal(t, "application/json", *f.puts[0].ContentType)

	data, err := GetBytes(context.Background(), f, "bucket", "k.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	_, err = GetBytes(context.Background(), f, "bucket", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObjectExists(t *testing.T) {
	f := &fakeS3{objects: map[string][]byte{"outputs/r1/anime_post.mp4": {1}}}

	ok, err := ObjectExists(context.Background(), f, "bucket", "outputs/r1/anime_post.mp4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ObjectExists(context.Background(), f, "bucket", "outputs/r2/anime_post.mp4")
	require.NoError(t, err, "a missing object is not an error")
	assert.False(t, ok)

	f.headErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	_, err = ObjectExists(context.Background(), f, "bucket", "x")
	assert.Error(t, err, "AccessDenied should surface as an error")
}

type fakePresign struct {
	expires time.Duration
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + "/" + *in.Key + "?sig"}, nil
}

func TestPresigner(t *testing.T) {
	fp := &fakePresign{}
	url, err := Presigner{Client: fp}.PresignGet(context.Background(), "b", "most_recent_post.json", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://b/most_recent_post.json?sig", url)
	assert.Equal(t, time.Hour, fp.expires)
}
