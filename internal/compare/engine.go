package compare

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/semdiff/videodiff/internal/config"
	"github.com/semdiff/videodiff/internal/metrics"
	"github.com/semdiff/videodiff/internal/models"
)

// Describer is the model client contract the engine runs against. A non-nil
// error is fatal and aborts the remaining sequence; retryable failures that
// exhausted their attempts come back as failure-marked results with a nil
// error.
type Describer interface {
	DescribeSingle(ctx context.Context, image []byte, instruction string) (models.DescriptionResult, error)
	DescribePair(ctx context.Context, prev, curr []byte, instruction string) (models.DescriptionResult, error)
}

// Prompts are the three instruction texts of a comparison run.
type Prompts struct {
	Baseline   string
	FirstFrame string
	Diff       string
}

func PromptsFromConfig(cfg config.PipelineConfig) Prompts {
	return Prompts{
		Baseline:   cfg.BaselinePrompt,
		FirstFrame: cfg.FirstFramePrompt,
		Diff:       cfg.DiffPrompt,
	}
}

// Engine produces a ComparisonRun from an ordered frame sequence. Execution
// is strictly sequential: the diff strategy needs the previous frame, and the
// client throttles itself against an external rate limit.
type Engine struct {
	logger  *slog.Logger
	client  Describer
	prompts Prompts
}

func NewEngine(logger *slog.Logger, client Describer, prompts Prompts) *Engine {
	return &Engine{
		logger:  logger,
		client:  client,
		prompts: prompts,
	}
}

// Run describes every frame with both strategies. Baseline describes each
// frame independently; diff describes frame 0 in full and every later frame
// as a change against frames[i-1]. The previous frame is threaded by index,
// and advances whether or not its own description succeeded.
//
// Both strategies are invoked per frame before moving on, so on a fatal error
// the two result sequences stay index-aligned and hold exactly the frames
// completed so far; the run comes back marked incomplete alongside the error.
func (e *Engine) Run(ctx context.Context, frames []models.Frame) (*models.ComparisonRun, error) {
	run := &models.ComparisonRun{
		ID:        uuid.NewString(),
		NumFrames: len(frames),
		Baseline:  make([]models.DescriptionResult, 0, len(frames)),
		Diff:      make([]models.DescriptionResult, 0, len(frames)),
	}

	for i := range frames {
		base, err := e.client.DescribeSingle(ctx, frames[i].JPEG, e.prompts.Baseline)
		if err != nil {
			run.Finalize()
			return run, fmt.Errorf("baseline frame %d: %w", i, err)
		}

		var diff models.DescriptionResult
		if i == 0 {
			diff, err = e.client.DescribeSingle(ctx, frames[i].JPEG, e.prompts.FirstFrame)
		} else {
			diff, err = e.client.DescribePair(ctx, frames[i-1].JPEG, frames[i].JPEG, e.prompts.Diff)
		}
		if err != nil {
			// The baseline result for this frame is dropped so a
			// frame only counts once both strategies completed.
			run.Finalize()
			return run, fmt.Errorf("diff frame %d: %w", i, err)
		}

		run.Baseline = append(run.Baseline, base)
		run.Diff = append(run.Diff, diff)
		run.BaselineTokens += base.TotalTokens()
		run.DiffTokens += diff.TotalTokens()
		metrics.AddTokens("baseline", base.PromptTokens, base.CompletionTokens)
		metrics.AddTokens("diff", diff.PromptTokens, diff.CompletionTokens)

		e.logger.Info("frame described",
			"frame", i,
			"baseline_ok", base.OK,
			"diff_ok", diff.OK,
			"baseline_tokens", base.TotalTokens(),
			"diff_tokens", diff.TotalTokens(),
		)
	}

	run.Complete = true
	run.Finalize()
	return run, nil
}
