package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/semdiff/videodiff/internal/compare"
	"github.com/semdiff/videodiff/internal/models"
)

type describeService interface {
	DescribeSingle(ctx context.Context, image []byte, instruction string) (models.DescriptionResult, error)
	DescribePair(ctx context.Context, prev, curr []byte, instruction string) (models.DescriptionResult, error)
}

type compareService interface {
	Run(ctx context.Context, frames []models.Frame) (*models.ComparisonRun, error)
}

type CompareHandler struct {
	client   describeService
	engine   compareService
	prompts  compare.Prompts
	validate *validator.Validate
}

func NewCompareHandler(client describeService, engine compareService, prompts compare.Prompts) *CompareHandler {
	return &CompareHandler{
		client:   client,
		engine:   engine,
		prompts:  prompts,
		validate: validator.New(),
	}
}

// Describe handles POST /describe: one frame, or a consecutive pair when
// prev_base64 is present. The instruction defaults to the configured baseline
// or diff prompt.
func (h *CompareHandler) Describe(w http.ResponseWriter, r *http.Request) {
	var req models.DescribeRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err))
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid image_base64: %s", err))
		return
	}

	var result models.DescriptionResult
	if req.PrevBase64 != "" {
		prev, err := base64.StdEncoding.DecodeString(req.PrevBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid prev_base64: %s", err))
			return
		}
		result, err = h.client.DescribePair(r.Context(), prev, image, orDefault(req.Instruction, h.prompts.Diff))
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("model error: %s", err))
			return
		}
	} else {
		result, err = h.client.DescribeSingle(r.Context(), image, orDefault(req.Instruction, h.prompts.Baseline))
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("model error: %s", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, models.DescribeResponse{Result: result})
}

// Compare handles POST /compare: a full baseline-vs-diff run over an ordered
// frame sequence.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req models.CompareRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request validation failed: %s", err))
		return
	}

	frames := make([]models.Frame, 0, len(req.FramesBase64))
	for i, b64 := range req.FramesBase64 {
		jpeg, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid frame %d: %s", i, err))
			return
		}
		frames = append(frames, models.Frame{Index: i, JPEG: jpeg})
	}

	run, err := h.engine.Run(r.Context(), frames)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("comparison aborted: %s", err))
		return
	}

	writeJSON(w, http.StatusOK, models.CompareResponse{Run: run})
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %s", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
