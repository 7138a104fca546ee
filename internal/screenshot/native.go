package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// OutputPlaceholder in Native.Args is replaced by the capture file path
const OutputPlaceholder = "{output}"

// Native shells out to a still-capture tool that writes an image file
type Native struct {
	Command        string
	Args           []string
	DefaultQuality Quality
}

func (n *Native) Capture(ctx context.Context, opts Options) Result {
	t, err := resolveTier(opts.Quality, n.DefaultQuality)
	if err != nil {
		return failed(err)
	}

	dir, err := os.MkdirTemp("", "deskcapture-shot-")
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "failed to create temp directory", Err: err})
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, "screen.png")
	args := make([]string, 0, len(n.Args)+1)
	placed := false
	for _, a := range n.Args {
		if strings.Contains(a, OutputPlaceholder) {
			placed = true
		}
		args = append(args, strings.ReplaceAll(a, OutputPlaceholder, output))
	}
	if !placed {
		args = append(args, output)
	}

	cmd := exec.CommandContext(ctx, n.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return failed(&ScreenshotFailedError{Reason: fmt.Sprintf("%s failed", n.Command), Err: err})
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "capture produced no image", Err: err})
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return failed(&ScreenshotFailedError{Reason: "failed to decode capture", Err: err})
	}

	return finish(img, t)
}
