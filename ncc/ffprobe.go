package ncc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Prober reports duration of audio files.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// ProberFunc adapts function to Prober interface.
type ProberFunc func(ctx context.Context, path string) (time.Duration, error)

func (f ProberFunc) Duration(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// FFProbe gets audio duration running external ffprobe binary.
type FFProbe struct {
	// Binary is ffprobe executable, "ffprobe" from PATH when empty.
	Binary string
}

type probeResult struct {
	Format struct {
		Filename string `json:"filename"`
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p FFProbe) Duration(ctx context.Context, path string) (time.Duration, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (time.Duration, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil || secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return 0, fmt.Errorf("ffprobe: no usable duration for %q (%q)", result.Format.Filename, result.Format.Duration)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}
