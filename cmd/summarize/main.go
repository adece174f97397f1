package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/semdiff/videodiff/internal/report"
)

// summarize re-aggregates saved result JSON into a markdown table and an
// optional CSV, without touching the model again.
func main() {
	var (
		resultsRoot = flag.String("results", "results", "directory of per-video result JSON")
		csvPath     = flag.String("csv", "analysis_summary.csv", "path for the CSV summary export")
	)
	flag.Parse()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	)

	results, err := report.LoadAll(*resultsRoot)
	if err != nil {
		logger.Error("load results", "error", err)
		os.Exit(1)
	}
	logger.Info("results loaded", "count", len(results))

	rows := report.Summarize(results)
	report.RenderMarkdown(os.Stdout, rows)

	if *csvPath != "" {
		if err := report.WriteCSV(*csvPath, rows); err != nil {
			logger.Error("write csv", "error", err)
			os.Exit(1)
		}
		logger.Info("summary written", "csv", *csvPath)
	}
}
