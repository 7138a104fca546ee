package screenshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/audiolibrelab/deskcapture/internal/config"
)

type fakeEnumerator struct {
	sources []DisplaySource
	err     error
	width   int
	height  int
}

func (f *fakeEnumerator) Sources(ctx context.Context, w, h int) ([]DisplaySource, error) {
	f.width, f.height = w, h
	return f.sources, f.err
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func decodeResult(t *testing.T, res Result) image.Image {
	t.Helper()
	if !res.Success {
		t.Fatalf("Expected success, got error %q", res.Error)
	}
	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("Expected JPEG data, got decode error: %v", err)
	}
	return img
}

func TestGeneric_KeepsThumbnailSize(t *testing.T) {
	enum := &fakeEnumerator{sources: []DisplaySource{{ID: "screen:0", Thumbnail: solid(1920, 1080)}}}
	g := &Generic{Enumerator: enum}

	low := g.Capture(context.Background(), Options{Quality: QualityLow})
	img := decodeResult(t, low)

	if low.Width != 1920 || low.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", low.Width, low.Height)
	}
	if img.Bounds().Dx() != 1920 || img.Bounds().Dy() != 1080 {
		t.Errorf("Expected encoded image 1920x1080, got %v", img.Bounds())
	}
	if enum.width != ThumbnailWidth || enum.height != ThumbnailHeight {
		t.Errorf("Expected thumbnail request %dx%d, got %dx%d", ThumbnailWidth, ThumbnailHeight, enum.width, enum.height)
	}

	// Tiers differ in JPEG quality only
	high := g.Capture(context.Background(), Options{Quality: QualityHigh})
	decodeResult(t, high)
	if high.Width != 1920 || high.Height != 1080 {
		t.Errorf("Expected 1920x1080 at high quality, got %dx%d", high.Width, high.Height)
	}
	if bytes.Equal(low.Data, high.Data) {
		t.Error("Expected different encodings for low and high quality")
	}
}

func TestGeneric_SmallThumbnail(t *testing.T) {
	g := &Generic{Enumerator: &fakeEnumerator{sources: []DisplaySource{{ID: "a", Thumbnail: solid(320, 200)}}}}

	res := g.Capture(context.Background(), Options{Quality: QualityHigh})
	decodeResult(t, res)
	if res.Width != 320 || res.Height != 200 {
		t.Errorf("Expected original 320x200, got %dx%d", res.Width, res.Height)
	}
}

func TestGeneric_Failures(t *testing.T) {
	tests := []struct {
		name    string
		g       *Generic
		opts    Options
		wantErr string
	}{
		{"no sources", &Generic{Enumerator: &fakeEnumerator{}}, Options{}, "No screen sources available"},
		{"no enumerator", &Generic{}, Options{}, "No screen sources available"},
		{"enumerate error", &Generic{Enumerator: &fakeEnumerator{err: errors.New("denied")}}, Options{}, "failed to enumerate screen sources: denied"},
		{"bad quality", &Generic{Enumerator: &fakeEnumerator{}}, Options{Quality: "ultra"}, `unknown quality "ultra"`},
	}

	for _, test := range tests {
		res := test.g.Capture(context.Background(), test.opts)
		if res.Success {
			t.Errorf("%s: expected failure", test.name)
			continue
		}
		if res.Error != test.wantErr {
			t.Errorf("%s: expected error %q, got %q", test.name, test.wantErr, res.Error)
		}
		if res.Data != nil {
			t.Errorf("%s: expected no data on failure", test.name)
		}
	}
}

func TestNative_CapturesThroughCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helpers are not available on windows")
	}
	dir := t.TempDir()

	src := filepath.Join(dir, "src.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(800, 1600)); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	script := filepath.Join(dir, "fakeshot")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncp '"+src+"' \"$2\"\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	n := &Native{Command: script, Args: []string{"-x", OutputPlaceholder}, DefaultQuality: QualityMedium}
	res := n.Capture(context.Background(), Options{})
	decodeResult(t, res)

	if res.Height != 1080 || res.Width != 540 {
		t.Errorf("Expected 540x1080, got %dx%d", res.Width, res.Height)
	}
}

func TestNative_CommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell helpers are not available on windows")
	}
	script := filepath.Join(t.TempDir(), "broken")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'no display' >&2\nexit 3\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	res := (&Native{Command: script}).Capture(context.Background(), Options{Quality: QualityLow})
	if res.Success {
		t.Fatal("Expected failure")
	}
	if !bytes.Contains([]byte(res.Error), []byte("no display")) {
		t.Errorf("Expected command output in error, got %q", res.Error)
	}
}

func TestNew_SelectsStrategy(t *testing.T) {
	cfg := config.ScreenshotConfig{Command: "definitely-not-a-real-screenshot-tool", DefaultQuality: config.QualityHigh}
	p := New(cfg, nil)
	g, ok := p.(*Generic)
	if !ok {
		t.Fatalf("Expected generic strategy for missing command, got %T", p)
	}
	if g.DefaultQuality != QualityHigh {
		t.Errorf("Expected default quality high, got %s", g.DefaultQuality)
	}

	if runtime.GOOS != "windows" {
		if _, ok := New(config.ScreenshotConfig{Command: "sh"}, nil).(*Native); !ok {
			t.Error("Expected native strategy when the command is on PATH")
		}
	}
}

func TestScaleToHeight(t *testing.T) {
	img := solid(1000, 3000)
	scaled := scaleToHeight(img, 1440)
	if scaled.Bounds().Dx() != 480 || scaled.Bounds().Dy() != 1440 {
		t.Errorf("Expected 480x1440, got %v", scaled.Bounds())
	}
	if same := scaleToHeight(img, 4000); same != img {
		t.Error("Expected image under the cap to be returned unchanged")
	}
}
