package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/semdiff/videodiff/internal/models"
	"github.com/semdiff/videodiff/internal/textmetrics"
)

// Build wraps a finished run with its video metadata and the derived text
// metrics.
func Build(videoID, class, frameDir string, frameFiles []string, run *models.ComparisonRun) *models.VideoResult {
	baseTexts := run.BaselineTexts()
	diffTexts := run.DiffTexts()

	lexBaseAvg, lexBaseAll := textmetrics.LexicalRedundancy(baseTexts)
	lexDiffAvg, lexDiffAll := textmetrics.LexicalRedundancy(diffTexts)

	return &models.VideoResult{
		VideoID:    videoID,
		Class:      class,
		FrameDir:   frameDir,
		FrameFiles: frameFiles,
		Run:        run,

		LexRedundancyBaselineAvg: lexBaseAvg,
		LexRedundancyDiffAvg:     lexDiffAvg,
		LexRedundancyBaselineAll: lexBaseAll,
		LexRedundancyDiffAll:     lexDiffAll,

		InfoDensityBaseline: textmetrics.AverageInformationDensity(baseTexts, class),
		InfoDensityDiff:     textmetrics.AverageInformationDensity(diffTexts, class),
	}
}

func resultPath(root, class, videoID string) string {
	return filepath.Join(root, class, videoID+".json")
}

// Exists reports whether a result for the video was already saved, so an
// interrupted batch can resume without re-running finished videos.
func Exists(root, class, videoID string) bool {
	_, err := os.Stat(resultPath(root, class, videoID))
	return err == nil
}

// Save writes one video result as JSON under root/<class>/<video_id>.json.
func Save(root string, res *models.VideoResult) error {
	dir := filepath.Join(root, res.Class)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	data, err := sonic.ConfigDefault.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	path := resultPath(root, res.Class, res.VideoID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result %q: %w", path, err)
	}
	return nil
}

// LoadAll reads every saved video result under root. A missing root is an
// empty result set, not an error.
func LoadAll(root string) ([]models.VideoResult, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var results []models.VideoResult
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read result %q: %w", path, err)
		}
		var res models.VideoResult
		if err := sonic.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("unmarshal result %q: %w", path, err)
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
