package identity

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const imageUniqueIDTag = "ImageUniqueID"

// ExifTool stores identifiers in the ImageUniqueID tag of the image itself.
type ExifTool struct {
	Binary    string
	Generator *Generator
	// Timeout bounds each exiftool invocation; zero disables the limit.
	Timeout time.Duration
}

// NewExifTool returns an ExifTool backend using binary (default "exiftool").
func NewExifTool(binary string, gen *Generator, timeout time.Duration) *ExifTool {
	if strings.TrimSpace(binary) == "" {
		binary = "exiftool"
	}
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &ExifTool{Binary: binary, Generator: gen, Timeout: timeout}
}

// Lookup reads the ImageUniqueID tag.
func (e *ExifTool) Lookup(ctx context.Context, path string) (string, error) {
	out, err := e.run(ctx, "-s3", "-"+imageUniqueIDTag, "--", path)
	if err != nil {
		return "", fmt.Errorf("exiftool read %s: %w", path, err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", ErrNoIdentifier
	}
	return id, nil
}

// Assign returns the embedded identifier, writing a freshly minted one when
// the tag is empty or force is set. The write is confirmed by reading the tag
// back.
func (e *ExifTool) Assign(ctx context.Context, path string, force bool) (string, error) {
	if !force {
		id, err := e.Lookup(ctx, path)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoIdentifier) {
			return "", err
		}
	}

	id, err := e.Generator.New()
	if err != nil {
		return "", err
	}
	if _, err := e.run(ctx, "-overwrite_original", "-"+imageUniqueIDTag+"="+id, "--", path); err != nil {
		return "", fmt.Errorf("exiftool write %s: %w", path, err)
	}

	stored, err := e.Lookup(ctx, path)
	if err != nil {
		return "", fmt.Errorf("confirm identifier: %w", err)
	}
	if stored != id {
		return "", fmt.Errorf("confirm identifier %s: tag holds %q, wrote %q", path, stored, id)
	}
	return id, nil
}

func (e *ExifTool) run(ctx context.Context, args ...string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", err, detail)
	}
	return string(output), nil
}
