package model

// Demucs models the service accepts. Anything else is rejected before a job
// is touched.
const (
	ModelHTDemucs   = "htdemucs"
	ModelHTDemucsFT = "htdemucs_ft"
	ModelHTDemucs6S = "htdemucs_6s"
	ModelMDXQ       = "mdx_q"
)

// ValidModel reports whether name is on the model allow-list.
func ValidModel(name string) bool {
	switch name {
	case ModelHTDemucs, ModelHTDemucsFT, ModelHTDemucs6S, ModelMDXQ:
		return true
	}
	return false
}

// SeparateRequest represents the request to start a separation job
type SeparateRequest struct {
	FileID   string `json:"file_id" validate:"required"`
	Model    string `json:"model" validate:"omitempty,oneof=htdemucs htdemucs_ft htdemucs_6s mdx_q"`
	StemMode string `json:"stem_mode" validate:"omitempty,oneof=vocals all"`
}

// SeparationParams is the resolved work order handed to the pipeline.
type SeparationParams struct {
	Model string `json:"model"`
	// TwoStems is the two-stem isolation target ("vocals"), empty for a
	// full multi-stem separation.
	TwoStems string `json:"twoStems"`
}

// SeparateResponse represents the response when a separation is accepted
type SeparateResponse struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

// StatusResponse represents the polled status of a job
type StatusResponse struct {
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Stems    []string  `json:"stems"`
	Error    *string   `json:"error"`
}

// UploadResponse represents the response to a successful upload
type UploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
