package models

import "time"

// EventKind classifies journal entries.
type EventKind string

const (
	EventUpload   EventKind = "upload"
	EventDownload EventKind = "download"
	EventDelete   EventKind = "delete"
)

// Event is one journal row.
type Event struct {
	Kind     EventKind `json:"kind"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Remote   string    `json:"remote,omitempty"`
	At       time.Time `json:"at"`
}

// Stats aggregates the journal.
type Stats struct {
	Uploads         int64   `json:"uploads"`
	Downloads       int64   `json:"downloads"`
	Deletes         int64   `json:"deletes"`
	BytesUploaded   int64   `json:"bytesUploaded"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	Recent          []Event `json:"recent"`
}
