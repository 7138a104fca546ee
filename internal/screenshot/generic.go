package screenshot

import (
	"context"
	"image"
)

// Thumbnail size requested from the enumerator
const (
	ThumbnailWidth  = 1920
	ThumbnailHeight = 1080
)

// DisplaySource is one capturable screen with a pre-rendered thumbnail
type DisplaySource struct {
	ID        string
	Name      string
	Thumbnail image.Image
}

// SourceEnumerator lists display sources, typically supplied by a windowing host
type SourceEnumerator interface {
	Sources(ctx context.Context, thumbWidth, thumbHeight int) ([]DisplaySource, error)
}

// Generic re-encodes the thumbnail of the first enumerated display at the
// tier's JPEG quality. The thumbnail keeps its own dimensions.
type Generic struct {
	Enumerator     SourceEnumerator
	DefaultQuality Quality
}

func (g *Generic) Capture(ctx context.Context, opts Options) Result {
	t, err := resolveTier(opts.Quality, g.DefaultQuality)
	if err != nil {
		return failed(err)
	}

	if g.Enumerator == nil {
		return failed(&ScreenshotFailedError{Reason: "No screen sources available"})
	}
	sources, err := g.Enumerator.Sources(ctx, ThumbnailWidth, ThumbnailHeight)
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "failed to enumerate screen sources", Err: err})
	}
	if len(sources) == 0 {
		return failed(&ScreenshotFailedError{Reason: "No screen sources available"})
	}

	first := sources[0]
	if first.Thumbnail == nil || first.Thumbnail.Bounds().Empty() {
		return failed(&ScreenshotFailedError{Reason: "screen source " + first.ID + " has no thumbnail"})
	}
	data, err := encodeJPEG(first.Thumbnail, t.jpegQuality)
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "failed to encode screenshot", Err: err})
	}
	b := first.Thumbnail.Bounds()
	return Result{Success: true, Data: data, Width: b.Dx(), Height: b.Dy()}
}
