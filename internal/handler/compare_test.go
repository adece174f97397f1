package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/semdiff/videodiff/internal/compare"
	"github.com/semdiff/videodiff/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrompts = compare.Prompts{
	Baseline:   "baseline prompt",
	FirstFrame: "first frame prompt",
	Diff:       "diff prompt",
}

type stubDescriber struct {
	lastInstruction string
	lastPair        bool
	result          models.DescriptionResult
	err             error
}

func (s *stubDescriber) DescribeSingle(_ context.Context, _ []byte, instruction string) (models.DescriptionResult, error) {
	s.lastInstruction = instruction
	s.lastPair = false
	return s.result, s.err
}

func (s *stubDescriber) DescribePair(_ context.Context, _, _ []byte, instruction string) (models.DescriptionResult, error) {
	s.lastInstruction = instruction
	s.lastPair = true
	return s.result, s.err
}

type stubEngine struct {
	gotFrames []models.Frame
	run       *models.ComparisonRun
	err       error
}

func (s *stubEngine) Run(_ context.Context, frames []models.Frame) (*models.ComparisonRun, error) {
	s.gotFrames = frames
	return s.run, s.err
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := sonic.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func TestDescribeSingleFrame(t *testing.T) {
	client := &stubDescriber{result: models.DescriptionResult{Text: "a cat", OK: true}}
	h := NewCompareHandler(client, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Describe, models.DescribeRequest{ImageBase64: b64([]byte{1, 2})})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.DescribeResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a cat", resp.Result.Text)
	assert.False(t, client.lastPair)
	assert.Equal(t, testPrompts.Baseline, client.lastInstruction)
}

func TestDescribePairUsesDiffPrompt(t *testing.T) {
	client := &stubDescriber{result: models.DescriptionResult{Text: "the cat moved", OK: true}}
	h := NewCompareHandler(client, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Describe, models.DescribeRequest{
		ImageBase64: b64([]byte{3}),
		PrevBase64:  b64([]byte{2}),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, client.lastPair)
	assert.Equal(t, testPrompts.Diff, client.lastInstruction)
}

func TestDescribeCustomInstructionWins(t *testing.T) {
	client := &stubDescriber{result: models.DescriptionResult{OK: true}}
	h := NewCompareHandler(client, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Describe, models.DescribeRequest{
		ImageBase64: b64([]byte{1}),
		Instruction: "count the people",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "count the people", client.lastInstruction)
}

func TestDescribeValidation(t *testing.T) {
	h := NewCompareHandler(&stubDescriber{}, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Describe, models.DescribeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Describe, models.DescribeRequest{ImageBase64: "not base64!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDescribeFatalModelError(t *testing.T) {
	client := &stubDescriber{err: errors.New("authentication failed")}
	h := NewCompareHandler(client, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Describe, models.DescribeRequest{ImageBase64: b64([]byte{1})})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCompareRunsEngine(t *testing.T) {
	engine := &stubEngine{run: &models.ComparisonRun{
		ID:                  "run-1",
		NumFrames:           2,
		BaselineTokens:      100,
		DiffTokens:          60,
		Reduction:           0.4,
		ReductionComputable: true,
		Complete:            true,
	}}
	h := NewCompareHandler(&stubDescriber{}, engine, testPrompts)

	rec := postJSON(t, h.Compare, models.CompareRequest{
		FramesBase64: []string{b64([]byte{0}), b64([]byte{1})},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, engine.gotFrames, 2)
	assert.Equal(t, 0, engine.gotFrames[0].Index)
	assert.Equal(t, []byte{1}, engine.gotFrames[1].JPEG)

	var resp models.CompareResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(100), resp.Run.BaselineTokens)
	assert.InDelta(t, 0.4, resp.Run.Reduction, 1e-9)
}

func TestCompareValidation(t *testing.T) {
	h := NewCompareHandler(&stubDescriber{}, &stubEngine{}, testPrompts)

	rec := postJSON(t, h.Compare, models.CompareRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Compare, models.CompareRequest{FramesBase64: []string{"???"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareAbortedRun(t *testing.T) {
	engine := &stubEngine{run: &models.ComparisonRun{}, err: errors.New("fatal on frame 2")}
	h := NewCompareHandler(&stubDescriber{}, engine, testPrompts)

	rec := postJSON(t, h.Compare, models.CompareRequest{FramesBase64: []string{b64([]byte{0})}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
