package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

const (
	// MaxUploadSize is the largest accepted raw payload.
	MaxUploadSize = 5 << 20 // 5MiB
	// MaxPixels bounds the decoded size of an upload. A small file can
	// declare dimensions whose pixel buffer would not fit in memory.
	MaxPixels     = 40_000_000
	jpegQuality   = 85
	outputExt     = ".jpg"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrCorruptImage    = errors.New("corrupt image")
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// Upload is a raw file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// AllowedFile reports whether name carries an accepted image extension.
func AllowedFile(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Pipeline validates, resizes and persists uploaded images.
type Pipeline struct {
	store   *Store
	sem     *semaphore.Weighted
	newID   func() string
	results *prometheus.CounterVec
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers bounds the number of images decoded and encoded concurrently.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithIDGenerator replaces the random filename generator.
func WithIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// NewPipeline creates a Pipeline writing into store.
func NewPipeline(store *Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store: store,
		sem:   semaphore.NewWeighted(2),
		newID: uuid.NewString,
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "media",
			Name:      "ingest_total",
			Help:      "Image uploads by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the asset store the pipeline writes to.
func (p *Pipeline) Store() *Store {
	return p.store
}

// Collectors returns the pipeline's prometheus collectors.
func (p *Pipeline) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.results}
}

// Ingest stores up for purpose and returns the generated filename. Exactly one
// file is written on success and none on failure. Ingest never deletes an
// existing asset; replacing callers clean up the previous reference.
func (p *Pipeline) Ingest(ctx context.Context, up Upload, purpose Purpose) (string, error) {
	ref, err := p.ingest(ctx, up, purpose)
	p.results.WithLabelValues(string(purpose), outcome(err)).Inc()
	return ref, err
}

func (p *Pipeline) ingest(ctx context.Context, up Upload, purpose Purpose) (string, error) {
	if !purpose.valid() {
		return "", fmt.Errorf("unknown purpose %q", purpose)
	}
	if !AllowedFile(up.Filename) {
		return "", ErrInvalidFileType
	}
	if up.Body == nil {
		return "", ErrCorruptImage
	}

	raw, err := io.ReadAll(io.LimitReader(up.Body, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > MaxUploadSize {
		return "", ErrFileTooLarge
	}

	ref := p.newID() + outputExt

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	data, err := Process(bytes.NewReader(raw), purpose)
	p.sem.Release(1)
	if err != nil {
		return "", err
	}

	if err := p.store.Write(purpose, ref, data); err != nil {
		return "", err
	}
	return ref, nil
}

// TryDelete removes ref from the store without reporting errors.
func (p *Pipeline) TryDelete(purpose Purpose, ref string) bool {
	return p.store.TryDelete(purpose, ref)
}

// Process decodes src, fits it inside the purpose's bounding box without
// upscaling, flattens any transparency onto white and encodes it as JPEG.
// Images declaring more than MaxPixels are rejected before decoding.
func Process(src io.Reader, purpose Purpose) ([]byte, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrCorruptImage, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrCorruptImage
	}
	maxW, maxH := purpose.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// FitWithin scales w x h down to fit maxW x maxH, keeping the aspect ratio.
// Images already inside the box are returned unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW against h/maxH without floating point.
	if w*maxH >= h*maxW {
		nh := (h*maxW + w/2) / w
		return maxW, max(nh, 1)
	}
	nw := (w*maxH + h/2) / h
	return max(nw, 1), maxH
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, ErrInvalidFileType):
		return "invalid_type"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrCorruptImage):
		return "corrupt"
	default:
		return "error"
	}
}

// EnsureDefaultProfileImage writes the placeholder avatar when it is missing.
func (p *Pipeline) EnsureDefaultProfileImage() error {
	if p.store.Exists(PurposeProfile, DefaultProfileImage) {
		return nil
	}
	w, h := PurposeProfile.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0xd6, G: 0xd3, B: 0xd1, A: 0xff}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode placeholder: %w", err)
	}
	return p.store.Write(PurposeProfile, DefaultProfileImage, buf.Bytes())
}
