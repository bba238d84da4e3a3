package enrich

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-longoria/socialmedia-automation/internal/anilist"
	"github.com/ryan-longoria/socialmedia-automation/internal/imaging"
	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

type fakeSearch struct {
	media anilist.Media
	err   error
	query string
}

func (f *fakeSearch) Search(_ context.Context, title string) (anilist.Media, error) {
	f.query = title
	return f.media, f.err
}

type fakePut struct {
	keys         []string
	contentTypes []string
	sizes        []int
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, *in.Key)
	f.contentTypes = append(f.contentTypes, *in.ContentType)
	f.sizes = append(f.sizes, len(data))
	return &s3.PutObjectOutput{}, nil
}

type keepNormalizer struct{ calls int }

func (k *keepNormalizer) Normalize(_ context.Context, src string) string {
	k.calls++
	return src
}

func imageServer(t *testing.T, size int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0xAB}, size))
	}))
	t.Cleanup(server.Close)
	return server
}

func newEnricher(t *testing.T, search Searcher, put *fakePut) (*Enricher, *keepNormalizer) {
	norm := &keepNormalizer{}
	return &Enricher{
		Search:     search,
		Images:     imaging.NewDownloader(t.TempDir(), imaging.MinBytes),
		Normalizer: norm,
		S3:         put,
		Bucket:     "content",
	}, norm
}

func TestEnrich_ReconcilesAndStoresCover(t *testing.T) {
	img := imageServer(t, 50000)
	search := &fakeSearch{media: anilist.Media{
		Titles:   []string{"Some Show: Second Season"},
		CoverURL: img.URL + "/cover.jpg",
	}}
	put := &fakePut{}
	e, norm := newEnricher(t, search, put)

	post, report, err := e.Enrich(context.Background(), "run-1", pipeline.Post{
		Title:       "Some Show Anime Reveals New Trailer",
		Description: "Feed summary",
	})
	require.NoError(t, err)

	assert.Equal(t, "Some Show", search.query, "AniList is searched with the core title")
	assert.Equal(t, "Some Show: Second Season", post.Title)
	assert.Equal(t, "Anime Reveals New Trailer", post.Description)
	assert.Equal(t, img.URL+"/cover.jpg", post.ImageURL)
	assert.Equal(t, "images/run-1/cover.jpg", post.ImageRef)
	assert.Equal(t, "Some Show", report.CoreTitle)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, int64(50000), report.CoverBytes)
	assert.Equal(t, 1, norm.calls)

	require.Len(t, put.keys, 1)
	assert.Equal(t, "image/jpeg", put.contentTypes[0])
	assert.Equal(t, 50000, put.sizes[0])
}

func TestEnrich_SmallImageHasNoReference(t *testing.T) {
	img := imageServer(t, 500)
	search := &fakeSearch{media: anilist.Media{Titles: []string{"Some Show"}, CoverURL: img.URL + "/cover.jpg"}}
	put := &fakePut{}
	e, norm := newEnricher(t, search, put)

	post, report, err := e.Enrich(context.Background(), "run-1", pipeline.Post{Title: "Some Show Gets Movie"})
	require.NoError(t, err)
	assert.Empty(t, post.ImageRef)
	assert.Empty(t, put.keys)
	assert.Zero(t, norm.calls, "undersized download never reaches conversion")
	assert.Equal(t, int64(500), report.CoverBytes)
}

func TestEnrich_NoAniListTitlesUsesHeadline(t *testing.T) {
	e, _ := newEnricher(t, &fakeSearch{}, &fakePut{})
	post, report, err := e.Enrich(context.Background(), "run-1", pipeline.Post{
		Title:       "Obscure Thing Premieres in April",
		Description: "Feed summary",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	// The headline contains the core title, so partial ratio is 100 and the
	// whole headline wins.
	assert.Equal(t, "Obscure Thing Premieres in April", post.Title)
	assert.Equal(t, "Premieres in April", post.Description)
}

func TestEnrich_SearchErrorDegrades(t *testing.T) {
	e, _ := newEnricher(t, &fakeSearch{err: errors.New("AniList HTTP 500")}, &fakePut{})
	post, _, err := e.Enrich(context.Background(), "run-1", pipeline.Post{Title: "Some Show", Description: "keep me"})
	require.NoError(t, err)
	assert.Equal(t, "Some Show", post.Title)
	assert.Equal(t, "keep me", post.Description, "empty segment description keeps the feed description")
	assert.Empty(t, post.ImageURL)
}

func TestEnrich_NoTitle(t *testing.T) {
	e, _ := newEnricher(t, &fakeSearch{}, &fakePut{})
	_, _, err := e.Enrich(context.Background(), "run-1", pipeline.Post{Title: "  "})
	assert.ErrorIs(t, err, ErrNoTitle)
}
