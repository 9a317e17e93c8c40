// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/models"
)

// FileHandler handles upload, listing, download and delete
type FileHandler interface {
	HandleUpload(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleDownload(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// ProgressHandler reports server-side upload progress
type ProgressHandler interface {
	HandleUploadProgress(c echo.Context) error
	HandleProgressWebSocket(c echo.Context) error
}

// InfoHandler describes how other LAN devices can reach the server
type InfoHandler interface {
	HandleServerInfo(c echo.Context) error
	HandleServerQRCode(c echo.Context) error
}

// StatsHandler serves journal aggregates
type StatsHandler interface {
	HandleStats(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Journal records transfer events. Implemented by *journal.Journal.
type Journal interface {
	Record(ctx context.Context, ev models.Event) error
	Stats(ctx context.Context, recent int) (*models.Stats, error)
}

// Mirror copies stored files elsewhere. Implemented by *mirror.S3Mirror.
type Mirror interface {
	Put(ctx context.Context, name, localPath string) error
	Remove(ctx context.Context, name string) error
}
