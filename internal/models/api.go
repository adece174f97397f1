package models

// DescribeRequest asks for a description of a single frame, or of the change
// between two consecutive frames when PrevBase64 is set. Images are base64
// encoded JPEG.
type DescribeRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	PrevBase64  string `json:"prev_base64,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

type DescribeResponse struct {
	Result DescriptionResult `json:"result"`
}

// CompareRequest carries an ordered frame sequence for a full baseline-vs-diff
// comparison run.
type CompareRequest struct {
	FramesBase64 []string `json:"frames_base64" validate:"required,min=1,dive,required"`
	VideoID      string   `json:"video_id,omitempty"`
}

type CompareResponse struct {
	Run *ComparisonRun `json:"run"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
