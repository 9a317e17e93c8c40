package models

// UploadStatus is the server-observed state of one upload.
type UploadStatus string

const (
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadProgress is a point-in-time snapshot of an upload as seen by the server.
// MB values and speed are rounded to two decimals, elapsed to one.
type UploadProgress struct {
	UploadID      string       `json:"uploadId"`
	FileName      string       `json:"fileName"`
	ReceivedBytes int64        `json:"receivedBytes"`
	TotalBytes    int64        `json:"totalBytes"`
	Progress      int          `json:"progress"`
	ReceivedMB    float64      `json:"receivedMB"`
	TotalMB       float64      `json:"totalMB"`
	Speed         float64      `json:"speed"`
	Elapsed       float64      `json:"elapsed"`
	Status        UploadStatus `json:"status"`
	Error         string       `json:"error,omitempty"`
}

// Finished reports whether the upload reached a terminal state.
func (p UploadProgress) Finished() bool {
	return p.Status == UploadStatusCompleted || p.Status == UploadStatusFailed
}
