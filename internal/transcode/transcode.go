// Package transcode downsizes report photos into embeddable JPEG data URIs.
//
// Transcode never fails. Every error path (unreachable host, bad status,
// undecodable bytes, timeout, cancellation) resolves to the original URL so a
// report can always place something in the cell.
package transcode

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/photo-report/internal/constants"
)

const dataURIPrefix = "data:image/jpeg;base64,"

// Reason explains why a transcode fell back to the original URL.
type Reason string

// Fallback reasons. An empty Reason means the transcode succeeded.
const (
	ReasonTimeout     Reason = "timeout"
	ReasonCancelled   Reason = "cancelled"
	ReasonFetch       Reason = "fetch"
	ReasonStatus      Reason = "status"
	ReasonDecode      Reason = "decode"
	ReasonEncode      Reason = "encode"
	ReasonUnsupported Reason = "unsupported_scheme"
)

// Options controls output size, quality and the per-image time budget.
type Options struct {
	MaxDimension int           // longer edge in pixels
	Quality      float64       // JPEG quality, 0..1
	Timeout      time.Duration // fetch + decode + encode
	MaxBytes     int64         // largest accepted source body
	MaxPixels    int64         // largest accepted source raster, width x height
}

// DefaultOptions returns the report defaults: 800px, 0.6 quality, 4s.
func DefaultOptions() Options {
	return Options{
		MaxDimension: constants.DefaultMaxDimension,
		Quality:      constants.DefaultJPEGQuality,
		Timeout:      constants.DefaultTranscodeTimeout,
		MaxBytes:     constants.DefaultMaxImageBytes,
		MaxPixels:    constants.DefaultMaxPixels,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = d.Quality
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = d.MaxBytes
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = d.MaxPixels
	}
	return o
}

// Result is the outcome of one transcode. Source is always usable as an
// image reference: a data URI on success, the input URL otherwise.
type Result struct {
	Source   string `json:"source"`
	Degraded bool   `json:"degraded"`
	Reason   Reason `json:"reason,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Err      error  `json:"-"`
}

// Transcoder fetches and re-encodes images.
type Transcoder struct {
	client *http.Client
	opts   Options
	log    logrus.FieldLogger
}

// New creates a Transcoder. A nil client uses a fresh http.Client; the
// per-image timeout is enforced through the request context either way.
func New(opts Options, client *http.Client, log logrus.FieldLogger) *Transcoder {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transcoder{
		client: client,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Options returns the effective options after defaults were applied.
func (t *Transcoder) Options() Options {
	return t.opts
}

// Transcode resolves with whichever settles first: the encoded image, a
// failure, the timeout or ctx cancellation. Once it returns, the fetch is
// cancelled and a late result is dropped.
func (t *Transcoder) Transcode(ctx context.Context, src string) Result {
	if !isFetchable(src) {
		return t.fallback(src, ReasonUnsupported, fmt.Errorf("unsupported image reference %q", truncate(src, 64)))
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- t.encode(ctx, src)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return t.fallback(src, contextReason(ctx.Err()), ctx.Err())
	}
}

func (t *Transcoder) encode(ctx context.Context, src string) Result {
	data, status, err := t.fetch(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return t.fallback(src, contextReason(ctx.Err()), ctx.Err())
		}
		if status != 0 {
			return t.fallback(src, ReasonStatus, err)
		}
		return t.fallback(src, ReasonFetch, err)
	}

	// image.Decode ignores ctx, so the raster size is checked from the
	// header before any pixel buffer is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return t.fallback(src, ReasonDecode, fmt.Errorf("failed to decode image config: %w", err))
	}
	if err := t.checkPixels(cfg.Width, cfg.Height); err != nil {
		return t.fallback(src, ReasonDecode, err)
	}
	if ctx.Err() != nil {
		return t.fallback(src, contextReason(ctx.Err()), ctx.Err())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return t.fallback(src, ReasonDecode, fmt.Errorf("failed to decode image: %w", err))
	}
	if ctx.Err() != nil {
		return t.fallback(src, contextReason(ctx.Err()), ctx.Err())
	}

	bounds := img.Bounds()
	width, height := Dimensions(bounds.Dx(), bounds.Dy(), t.opts.MaxDimension)
	if width == 0 || height == 0 {
		return t.fallback(src, ReasonDecode, errors.New("image has no pixels"))
	}

	// JPEG has no alpha; transparent regions end up white rather than black.
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality(t.opts.Quality)}); err != nil {
		return t.fallback(src, ReasonEncode, fmt.Errorf("failed to encode image: %w", err))
	}

	return Result{
		Source: dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:  width,
		Height: height,
	}
}

// fetch downloads src. The returned status is non-zero when the server
// answered with something other than 200.
func (t *Transcoder) fetch(ctx context.Context, src string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := t.client.Do(req) //nolint:gosec // URLs come from stored monitoring records
	if err != nil {
		return nil, 0, fmt.Errorf("could not fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("image request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.opts.MaxBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("could not read image body: %w", err)
	}
	if int64(len(data)) > t.opts.MaxBytes {
		return nil, 0, fmt.Errorf("image exceeds %d bytes", t.opts.MaxBytes)
	}
	return data, 0, nil
}

func (t *Transcoder) fallback(src string, reason Reason, err error) Result {
	t.log.WithFields(logrus.Fields{
		"url":    sanitizeForLog(truncate(src, 200)),
		"reason": reason,
		"error":  err,
	}).Debug("Image transcode degraded, using original URL")
	return Result{Source: src, Degraded: true, Reason: reason, Err: err}
}

// checkPixels rejects rasters whose decoded size exceeds the pixel budget.
func (t *Transcoder) checkPixels(w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.New("image has no pixels")
	}
	if int64(w) > t.opts.MaxPixels/int64(h) {
		return fmt.Errorf("image %dx%d exceeds the %d pixel limit", w, h, t.opts.MaxPixels)
	}
	return nil
}

// Dimensions scales (w, h) so the longer edge equals maxDim, keeping the
// aspect ratio. Images that already fit are returned unchanged.
func Dimensions(w, h, maxDim int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, int(math.Round(float64(h)*float64(maxDim)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxDim)/float64(h)))), maxDim
}

func jpegQuality(q float64) int {
	return min(100, max(1, int(math.Round(q*100))))
}

func contextReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCancelled
}

func isFetchable(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
