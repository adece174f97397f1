package models

// Frame is one still image from a video plus its ordinal position in the
// sequence. Frames are immutable once loaded.
type Frame struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	JPEG  []byte `json:"-"`
}

// DescriptionResult is the outcome of a single model call. Token counts come
// from the API usage block, never from a local estimate. A failed call keeps
// whatever counts the API reported before failing (zero otherwise).
type DescriptionResult struct {
	Text             string `json:"text"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	OK               bool   `json:"ok"`
	FailReason       string `json:"fail_reason,omitempty"`
}

// TotalTokens returns prompt + completion tokens for this call.
func (r DescriptionResult) TotalTokens() int64 {
	return r.PromptTokens + r.CompletionTokens
}

// ComparisonRun aggregates one baseline-vs-diff comparison over a frame
// sequence. Both result slices are index-aligned with the input frames.
type ComparisonRun struct {
	ID        string `json:"id"`
	NumFrames int    `json:"num_frames"`

	Baseline []DescriptionResult `json:"baseline"`
	Diff     []DescriptionResult `json:"diff"`

	BaselineTokens int64 `json:"baseline_tokens"`
	DiffTokens     int64 `json:"diff_tokens"`

	// Reduction = (baseline - diff) / baseline. Only meaningful when
	// ReductionComputable is true (baseline tokens > 0).
	Reduction           float64 `json:"reduction"`
	ReductionComputable bool    `json:"reduction_computable"`

	// Complete is false when a fatal model error halted the run before
	// every frame was processed.
	Complete bool `json:"complete"`
}

// Finalize computes the reduction percentage from the accumulated totals.
func (run *ComparisonRun) Finalize() {
	if run.BaselineTokens > 0 {
		run.Reduction = float64(run.BaselineTokens-run.DiffTokens) / float64(run.BaselineTokens)
		run.ReductionComputable = true
		return
	}
	run.Reduction = 0
	run.ReductionComputable = false
}

// BaselineTexts returns the baseline descriptions in frame order.
func (run *ComparisonRun) BaselineTexts() []string {
	return texts(run.Baseline)
}

// DiffTexts returns the diff descriptions in frame order.
func (run *ComparisonRun) DiffTexts() []string {
	return texts(run.Diff)
}

func texts(results []DescriptionResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Text)
	}
	return out
}

// VideoResult is the persisted record for one processed video: the run plus
// video metadata and derived text metrics.
type VideoResult struct {
	VideoID    string   `json:"video_id"`
	Class      string   `json:"class"`
	FrameDir   string   `json:"frame_dir,omitempty"`
	FrameFiles []string `json:"frame_files"`

	Run *ComparisonRun `json:"run"`

	LexRedundancyBaselineAvg float64   `json:"lexical_redundancy_baseline_avg"`
	LexRedundancyDiffAvg     float64   `json:"lexical_redundancy_diff_avg"`
	LexRedundancyBaselineAll []float64 `json:"lexical_redundancy_baseline_all"`
	LexRedundancyDiffAll     []float64 `json:"lexical_redundancy_diff_all"`

	InfoDensityBaseline float64 `json:"info_density_baseline"`
	InfoDensityDiff     float64 `json:"info_density_diff"`
}
