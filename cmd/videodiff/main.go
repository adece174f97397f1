package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/semdiff/videodiff/internal/cache"
	"github.com/semdiff/videodiff/internal/compare"
	"github.com/semdiff/videodiff/internal/config"
	"github.com/semdiff/videodiff/internal/frames"
	"github.com/semdiff/videodiff/internal/report"
	"github.com/semdiff/videodiff/internal/storage"
	"github.com/semdiff/videodiff/internal/vlm"
)

func main() {
	var (
		framesRoot  = flag.String("frames", "frames", "root directory of extracted frames (<class>/<video_id>/)")
		videosRoot  = flag.String("videos", "", "optional root of raw videos (<class>/<video>.mp4) to extract first")
		resultsRoot = flag.String("results", "results", "directory for per-video result JSON")
		csvPath     = flag.String("csv", "", "optional path for a CSV summary export")
	)
	flag.Parse()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	)

	if err := run(context.Background(), logger, *framesRoot, *videosRoot, *resultsRoot, *csvPath); err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, framesRoot, videosRoot, resultsRoot, csvPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if videosRoot != "" {
		if err := extractAll(ctx, logger, cfg, videosRoot, framesRoot); err != nil {
			return err
		}
	}

	videos, err := frames.ListVideos(framesRoot)
	if err != nil {
		return err
	}
	logger.Info("videos found", "count", len(videos), "frames_root", framesRoot)

	client := vlm.NewClient(logger, cfg.OpenAI, cfg.Pipeline)

	if cfg.CacheEnable {
		client.SetCacheClient(cache.NewRedisCache(
			cfg.RedisConfig.Addr,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.RedisConfig.TTL,
		))
		logger.Info("redis description cache enabled", "addr", cfg.RedisConfig.Addr)
	}

	var store *storage.Postgres
	if cfg.StoreEnable {
		store, err = storage.NewPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		defer store.Close()
		logger.Info("postgres result store enabled")
	}

	engine := compare.NewEngine(logger, client, compare.PromptsFromConfig(cfg.Pipeline))

	for _, video := range videos {
		if report.Exists(resultsRoot, video.Class, video.VideoID) {
			logger.Info("result exists, skipping", "class", video.Class, "video", video.VideoID)
			continue
		}

		if err := processVideo(ctx, logger, cfg, engine, store, video, resultsRoot); err != nil {
			// A fatal model error aborts this video's run; the next
			// video is an independent sequence.
			logger.Error("video aborted", "class", video.Class, "video", video.VideoID, "error", err)
		}
	}

	results, err := report.LoadAll(resultsRoot)
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}
	rows := report.Summarize(results)
	report.RenderMarkdown(os.Stdout, rows)

	if csvPath != "" {
		if err := report.WriteCSV(csvPath, rows); err != nil {
			return err
		}
		logger.Info("summary written", "csv", csvPath)
	}
	return nil
}

func processVideo(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	engine *compare.Engine,
	store *storage.Postgres,
	video frames.VideoRef,
	resultsRoot string,
) error {
	seq, err := frames.LoadDir(video.FrameDir, cfg.Pipeline.MaxFrames, cfg.Pipeline.MaxFrameSide)
	if err != nil {
		return err
	}
	if len(seq) == 0 {
		logger.Warn("no frames, skipping", "dir", video.FrameDir)
		return nil
	}
	logger.Info("processing video", "class", video.Class, "video", video.VideoID, "frames", len(seq))

	run, runErr := engine.Run(ctx, seq)

	frameFiles := make([]string, 0, len(seq))
	for _, f := range seq {
		frameFiles = append(frameFiles, f.Name)
	}
	res := report.Build(video.VideoID, video.Class, video.FrameDir, frameFiles, run)

	// An aborted run is still saved; Complete=false keeps it out of the
	// aggregate summary.
	if err := report.Save(resultsRoot, res); err != nil {
		return err
	}
	if store != nil {
		if err := store.SaveResult(ctx, res); err != nil {
			logger.Error("postgres save failed", "error", err)
		}
	}

	if run.ReductionComputable {
		logger.Info("video done",
			"class", video.Class,
			"video", video.VideoID,
			"baseline_tokens", run.BaselineTokens,
			"diff_tokens", run.DiffTokens,
			"reduction", fmt.Sprintf("%.1f%%", run.Reduction*100),
		)
	}
	return runErr
}

func extractAll(ctx context.Context, logger *slog.Logger, cfg *config.Config, videosRoot, framesRoot string) error {
	extractor := frames.NewExtractor(cfg.Pipeline.MaxFrames, logger)

	classes, err := os.ReadDir(videosRoot)
	if err != nil {
		return fmt.Errorf("read videos root %q: %w", videosRoot, err)
	}

	for _, cls := range classes {
		if !cls.IsDir() {
			continue
		}
		clsDir := filepath.Join(videosRoot, cls.Name())
		entries, err := os.ReadDir(clsDir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			outDir := filepath.Join(framesRoot, cls.Name(), name)
			if _, err := os.Stat(outDir); err == nil {
				continue
			}
			if _, err := extractor.Extract(ctx, filepath.Join(clsDir, e.Name()), outDir); err != nil {
				logger.Error("extraction failed", "video", e.Name(), "error", err)
			}
		}
	}
	return nil
}
