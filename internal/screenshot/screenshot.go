// Package screenshot captures a still image of the primary display and
// returns it as a size-capped JPEG.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os/exec"

	"golang.org/x/image/draw"

	"github.com/audiolibrelab/deskcapture/internal/config"
)

// Quality selects a JPEG quality and maximum height pair
type Quality string

const (
	QualityLow    Quality = config.QualityLow
	QualityMedium Quality = config.QualityMedium
	QualityHigh   Quality = config.QualityHigh
)

type tier struct {
	jpegQuality int
	maxHeight   int
}

var tiers = map[Quality]tier{
	QualityLow:    {jpegQuality: 60, maxHeight: 720},
	QualityMedium: {jpegQuality: 80, maxHeight: 1080},
	QualityHigh:   {jpegQuality: 92, maxHeight: 1440},
}

// Options is a screenshot request. An empty Quality uses the provider default.
type Options struct {
	Quality Quality `json:"quality,omitempty"`
}

// Result is always returned, failures included. Data marshals as base64.
type Result struct {
	Success bool   `json:"success"`
	Data    []byte `json:"data,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Provider captures one screenshot
type Provider interface {
	Capture(ctx context.Context, opts Options) Result
}

// ScreenshotFailedError describes why a capture produced no image
type ScreenshotFailedError struct {
	Reason string
	Err    error
}

func (e *ScreenshotFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ScreenshotFailedError) Unwrap() error {
	return e.Err
}

func failed(err error) Result {
	slog.Warn("Screenshot failed", "error", err)
	return Result{Success: false, Error: err.Error()}
}

// New picks the native command strategy when its command is on PATH,
// otherwise the source enumeration strategy.
func New(cfg config.ScreenshotConfig, enumerator SourceEnumerator) Provider {
	defaultQuality := Quality(cfg.DefaultQuality)
	if cfg.Command != "" {
		if _, err := exec.LookPath(cfg.Command); err == nil {
			slog.Debug("Using native screenshot command", "command", cfg.Command)
			return &Native{Command: cfg.Command, Args: cfg.Args, DefaultQuality: defaultQuality}
		}
		slog.Debug("Screenshot command not found, using source enumeration", "command", cfg.Command)
	}
	return &Generic{Enumerator: enumerator, DefaultQuality: defaultQuality}
}

func resolveTier(requested, fallback Quality) (tier, error) {
	q := requested
	if q == "" {
		q = fallback
	}
	if q == "" {
		q = QualityMedium
	}
	t, ok := tiers[q]
	if !ok {
		return tier{}, &ScreenshotFailedError{Reason: fmt.Sprintf("unknown quality %q", q)}
	}
	return t, nil
}

// finish scales img down to the tier height and encodes it
func finish(img image.Image, t tier) Result {
	scaled := scaleToHeight(img, t.maxHeight)
	data, err := encodeJPEG(scaled, t.jpegQuality)
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "failed to encode screenshot", Err: err})
	}
	b := scaled.Bounds()
	return Result{Success: true, Data: data, Width: b.Dx(), Height: b.Dy()}
}

// scaleToHeight preserves aspect ratio and never upscales
func scaleToHeight(img image.Image, maxHeight int) image.Image {
	b := img.Bounds()
	if b.Dy() <= maxHeight || b.Dy() == 0 {
		return img
	}
	width := int(float64(b.Dx())*float64(maxHeight)/float64(b.Dy()) + 0.5)
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
