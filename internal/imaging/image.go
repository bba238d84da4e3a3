// Package imaging downloads cover art and normalizes it to JPEG.
//
// Conversion tries ImageMagick first, then a pure-Go decoder that also
// understands WebP (AniList serves some covers as WebP). When every converter
// fails the downloaded file is kept as is.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// MinBytes is the size below which a download is treated as truncated.
const MinBytes = 1000

// userAgent mimics a browser; some CDNs reject the Go default.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ErrTooSmall is returned when a download is smaller than the minimum size.
var ErrTooSmall = errors.New("downloaded image too small, likely incomplete")

// ErrUnavailable is returned by a converter whose tool is not installed.
var ErrUnavailable = errors.New("converter unavailable")

// Downloader streams images to a local directory.
type Downloader struct {
	httpClient *http.Client
	dir        string
	minBytes   int64
}

// NewDownloader creates a Downloader writing into dir. minBytes <= 0 uses
// MinBytes.
func NewDownloader(dir string, minBytes int64) *Downloader {
	if minBytes <= 0 {
		minBytes = MinBytes
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dir:        dir,
		minBytes:   minBytes,
	}
}

// Download saves url to a new file and returns its path and size. A body
// smaller than the minimum is removed and reported as ErrTooSmall.
func (d *Downloader) Download(ctx context.Context, url string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download image: HTTP %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(d.dir, "cover-*"+extFromURL(url))
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("write image: %w", errors.Join(copyErr, closeErr))
	}

	log.Debug().Str("path", f.Name()).Int64("bytes", n).Msg("Image downloaded")
	if n < d.minBytes {
		os.Remove(f.Name())
		return "", n, fmt.Errorf("%w: %d bytes", ErrTooSmall, n)
	}
	return f.Name(), n, nil
}

// Converter turns src into a JPEG at dst.
type Converter interface {
	Name() string
	Convert(ctx context.Context, src, dst string) error
}

// Normalizer runs converters in order until one succeeds.
type Normalizer struct {
	Converters []Converter
}

// NewNormalizer builds the default chain: ImageMagick, then the pure-Go
// converter bounded to maxDim pixels.
func NewNormalizer(magickExe string, maxDim int) *Normalizer {
	return &Normalizer{Converters: []Converter{
		&MagickConverter{Exe: magickExe},
		&NativeConverter{MaxDim: maxDim},
	}}
}

// Normalize returns the path of a JPEG version of src, or src itself when no
// converter succeeded.
func (n *Normalizer) Normalize(ctx context.Context, src string) string {
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + "_converted.jpg"
	for _, c := range n.Converters {
		if err := c.Convert(ctx, src, dst); err != nil {
			log.Warn().Err(err).Str("converter", c.Name()).Msg("Image conversion failed, trying next")
			continue
		}
		log.Info().Str("converter", c.Name()).Str("path", dst).Msg("Image converted")
		return dst
	}
	log.Warn().Str("path", src).Msg("Keeping original image")
	return src
}

// MagickConverter shells out to ImageMagick.
type MagickConverter struct {
	Exe string
}

func (m *MagickConverter) Name() string { return "imagemagick" }

// Convert runs "<exe> src dst".
func (m *MagickConverter) Convert(ctx context.Context, src, dst string) error {
	exe := m.Exe
	if exe == "" {
		exe = "magick"
	}
	path, err := exec.LookPath(exe)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, exe, err)
	}
	out, err := exec.CommandContext(ctx, path, src, dst).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", exe, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NativeConverter decodes JPEG, PNG, GIF or WebP and re-encodes as JPEG,
// downscaling so the longer side is at most MaxDim (0 keeps the size).
type NativeConverter struct {
	MaxDim  int
	Quality int
}

func (c *NativeConverter) Name() string { return "native" }

// Convert decodes src and writes a JPEG to dst.
func (c *NativeConverter) Convert(_ context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	img, format, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	img = Fit(img, c.MaxDim)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	quality := c.Quality
	if quality <= 0 {
		quality = 90
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("encode jpeg: %w", err)
	}
	log.Debug().Str("format", format).Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("Re-encoded image")
	return out.Close()
}

// Fit scales img down so its longer side is maxDim. Smaller images and
// maxDim <= 0 return img unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	nw, nh := maxDim, h*maxDim/w
	if h > w {
		nw, nh = w*maxDim/h, maxDim
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func extFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	ext := strings.ToLower(filepath.Ext(url))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".img"
}
