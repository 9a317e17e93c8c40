package models

import "time"

// StoredFile describes one entry of the upload directory. It is derived from
// the directory listing on every request and never persisted.
type StoredFile struct {
	Filename   string    `json:"filename" msgpack:"filename"`
	Size       int64     `json:"size" msgpack:"size"`
	UploadTime time.Time `json:"uploadTime" msgpack:"uploadTime"`
}

// UploadResult is returned by the storage layer after a file has been written.
type UploadResult struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}
