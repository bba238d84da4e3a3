package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBytes(t *testing.T, n int) *httptest.Server {
	t.Helper()
	body := bytes.Repeat([]byte{0xAB}, n)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0"),
			"expected browser User-Agent, got %q", r.Header.Get("User-Agent"))
		w.Write(body)
	}))
}

func TestDownload_RejectsTruncated(t *testing.T) {
	server := serveBytes(t, 500)
	defer server.Close()
	dir := t.TempDir()

	path, n, err := NewDownloader(dir, 0).Download(context.Background(), server.URL+"/cover.jpg")
	require.ErrorIs(t, err, ErrTooSmall)
	assert.Empty(t, path)
	assert.EqualValues(t, 500, n)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "truncated file should be removed")
}

func TestDownload_AcceptsFullImage(t *testing.T) {
	server := serveBytes(t, 50000)
	defer server.Close()

	path, n, err := NewDownloader(t.TempDir(), 0).Download(context.Background(), server.URL+"/cover.webp?x=1")
	require.NoError(t, err)
	assert.EqualValues(t, 50000, n)
	assert.Equal(t, ".webp", filepath.Ext(path))
}

func TestDownload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := NewDownloader(t.TempDir(), 0).Download(context.Background(), server.URL)
	assert.ErrorContains(t, err, "404")
}

type fakeConverter struct {
	name  string
	err   error
	calls int
}

func (f *fakeConverter) Name() string { return f.name }

func (f *fakeConverter) Convert(_ context.Context, src, dst string) error {
	f.calls++
	return f.err
}

func TestNormalize_FallsThroughChain(t *testing.T) {
	first := &fakeConverter{name: "first", err: ErrUnavailable}
	second := &fakeConverter{name: "second"}
	n := &Normalizer{Converters: []Converter{first, second}}

	got := n.Normalize(context.Background(), "/tmp/cover-1.webp")
	assert.Equal(t, "/tmp/cover-1_converted.jpg", got)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestNormalize_KeepsOriginalWhenAllFail(t *testing.T) {
	n := &Normalizer{Converters: []Converter{
		&fakeConverter{name: "a", err: errors.New("boom")},
		&fakeConverter{name: "b", err: errors.New("boom")},
	}}
	assert.Equal(t, "/tmp/cover.jpg", n.Normalize(context.Background(), "/tmp/cover.jpg"))
}

func TestMagickConverter_Unavailable(t *testing.T) {
	c := &MagickConverter{Exe: "definitely-not-imagemagick-xyz"}
	assert.ErrorIs(t, c.Convert(context.Background(), "a", "b"), ErrUnavailable)
}

func TestNativeConverter_PNGToScaledJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cover.png")

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for x := 0; x < 300; x++ {
		for y := 0; y < 200; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o644))

	dst := filepath.Join(dir, "cover.jpg")
	require.NoError(t, (&NativeConverter{MaxDim: 150}).Convert(context.Background(), src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	out, err := jpeg.Decode(f)
	require.NoError(t, err, "output is not JPEG")
	assert.Equal(t, 150, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestNativeConverter_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cover.img")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte{0xAB}, 2000), 0o644))

	err := (&NativeConverter{}).Convert(context.Background(), src, filepath.Join(dir, "out.jpg"))
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	tall := image.NewRGBA(image.Rect(0, 0, 100, 400))
	got := Fit(tall, 200)
	assert.Equal(t, image.Rect(0, 0, 50, 200).Size(), got.Bounds().Size())

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, small, Fit(small, 200), "small image should be returned unchanged")
}
