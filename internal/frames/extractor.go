package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Extractor samples a fixed number of frames uniformly from a video using
// ffmpeg. It shells out, so ffmpeg and ffprobe must be on PATH.
type Extractor struct {
	maxFrames int
	logger    *slog.Logger
}

func NewExtractor(maxFrames int, logger *slog.Logger) *Extractor {
	return &Extractor{maxFrames: maxFrames, logger: logger}
}

// Extract writes up to maxFrames JPEG frames into outDir and returns their
// paths in frame order.
func (e *Extractor) Extract(ctx context.Context, videoPath, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	fps := 1.0
	duration, err := e.videoDuration(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not probe video duration", "video", videoPath, "error", err)
	} else if duration > 0 {
		fps = float64(e.maxFrames) / duration
	}

	framePattern := filepath.Join(outDir, "frame_%03d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-frames:v", strconv.Itoa(e.maxFrames),
		"-y",
		framePattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames extracted from %q", videoPath)
	}

	e.logger.Info("frames extracted",
		"video", filepath.Base(videoPath),
		"count", len(paths),
		"duration", duration,
	)
	return paths, nil
}

func (e *Extractor) videoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
