package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/semdiff/videodiff/internal/models"
)

// SummaryRow aggregates the results of one action class.
type SummaryRow struct {
	Class             string
	NumVideos         int
	AvgBaselineTokens float64
	AvgDiffTokens     float64
	TokenReduction    float64
	AvgLexBaseline    float64
	AvgLexDiff        float64
	AvgInfoBaseline   float64
	AvgInfoDiff       float64
}

// Summarize groups results per class and averages their metrics. Incomplete
// runs are skipped: their token totals only cover part of the sequence.
func Summarize(results []models.VideoResult) []SummaryRow {
	byClass := make(map[string][]models.VideoResult)
	for _, r := range results {
		if r.Run == nil || !r.Run.Complete {
			continue
		}
		byClass[r.Class] = append(byClass[r.Class], r)
	}

	classes := make([]string, 0, len(byClass))
	for cls := range byClass {
		classes = append(classes, cls)
	}
	sort.Strings(classes)

	rows := make([]SummaryRow, 0, len(classes))
	for _, cls := range classes {
		recs := byClass[cls]
		row := SummaryRow{Class: cls, NumVideos: len(recs)}
		for _, r := range recs {
			row.AvgBaselineTokens += float64(r.Run.BaselineTokens)
			row.AvgDiffTokens += float64(r.Run.DiffTokens)
			row.AvgLexBaseline += r.LexRedundancyBaselineAvg
			row.AvgLexDiff += r.LexRedundancyDiffAvg
			row.AvgInfoBaseline += r.InfoDensityBaseline
			row.AvgInfoDiff += r.InfoDensityDiff
		}
		n := float64(len(recs))
		row.AvgBaselineTokens /= n
		row.AvgDiffTokens /= n
		row.AvgLexBaseline /= n
		row.AvgLexDiff /= n
		row.AvgInfoBaseline /= n
		row.AvgInfoDiff /= n
		if row.AvgBaselineTokens > 0 {
			row.TokenReduction = 1.0 - row.AvgDiffTokens/row.AvgBaselineTokens
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderMarkdown prints the per-class summary as a markdown table.
func RenderMarkdown(w io.Writer, rows []SummaryRow) {
	fmt.Fprintln(w, "\n## Comparison Summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Class | Videos | Avg Base Tokens | Avg Diff Tokens | Reduction | Lex Base | Lex Diff | Info Base | Info Diff |")
	fmt.Fprintln(w, "|-------|--------|-----------------|-----------------|-----------|----------|----------|-----------|-----------|")

	var (
		totalVideos int
		totalBase   float64
		totalDiff   float64
	)
	for _, row := range rows {
		fmt.Fprintf(w, "| %s | %d | %.1f | %.1f | %.1f%% | %.3f | %.3f | %.4f | %.4f |\n",
			row.Class,
			row.NumVideos,
			row.AvgBaselineTokens,
			row.AvgDiffTokens,
			row.TokenReduction*100,
			row.AvgLexBaseline,
			row.AvgLexDiff,
			row.AvgInfoBaseline,
			row.AvgInfoDiff,
		)
		totalVideos += row.NumVideos
		totalBase += row.AvgBaselineTokens * float64(row.NumVideos)
		totalDiff += row.AvgDiffTokens * float64(row.NumVideos)
	}

	if totalVideos > 0 && totalBase > 0 {
		fmt.Fprintf(w, "| **ALL** | %d | %.1f | %.1f | %.1f%% | | | | |\n",
			totalVideos,
			totalBase/float64(totalVideos),
			totalDiff/float64(totalVideos),
			(1.0-totalDiff/totalBase)*100,
		)
	}
}

// WriteCSV exports the summary rows to a CSV file.
func WriteCSV(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"class", "num_videos",
		"avg_baseline_tokens", "avg_diff_tokens", "avg_token_reduction",
		"avg_lexical_redundancy_baseline", "avg_lexical_redundancy_diff",
		"avg_info_density_baseline", "avg_info_density_diff",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Class,
			strconv.Itoa(row.NumVideos),
			formatFloat(row.AvgBaselineTokens),
			formatFloat(row.AvgDiffTokens),
			formatFloat(row.TokenReduction),
			formatFloat(row.AvgLexBaseline),
			formatFloat(row.AvgLexDiff),
			formatFloat(row.AvgInfoBaseline),
			formatFloat(row.AvgInfoDiff),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
