// handlers_progress.go - Server-side upload progress
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/models"
	"github.com/lanbox/backend/internal/upload"
)

const (
	progressPollInterval = 100 * time.Millisecond
	wsWriteWait          = 5 * time.Second
)

type progressResponse struct {
	Success  bool                  `json:"success"`
	Progress models.UploadProgress `json:"progress"`
}

// ProgressHandlerImpl implements the ProgressHandler interface
type ProgressHandlerImpl struct {
	uploads  *upload.Manager
	upgrader websocket.Upgrader
	interval time.Duration
	log      *log.Logger
}

// NewProgressHandler creates a progress handler over the upload manager
func NewProgressHandler(uploads *upload.Manager) *ProgressHandlerImpl {
	return &ProgressHandlerImpl{
		uploads: uploads,
		upgrader: websocket.Upgrader{
			// The page is served by this same process to any LAN peer.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4 * 1024,
		},
		interval: progressPollInterval,
		log:      logging.For("progress"),
	}
}

// HandleUploadProgress returns the latest snapshot for :id.
func (h *ProgressHandlerImpl) HandleUploadProgress(c echo.Context) error {
	id := c.Param("id")
	snap, ok := h.uploads.Get(id)
	if !ok {
		return NewNotFoundError("upload", id)
	}
	return c.JSON(http.StatusOK, progressResponse{Success: true, Progress: snap})
}

// HandleProgressWebSocket pushes a snapshot whenever :id changes and closes
// once the upload has finished.
func (h *ProgressHandlerImpl) HandleProgressWebSocket(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.uploads.Get(id); !ok {
		return NewNotFoundError("upload", id)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	// Drain client frames so close and ping are handled.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last models.UploadProgress
	first := true
	for {
		snap, ok := h.uploads.Get(id)
		if !ok {
			h.closeWith(ws, websocket.CloseNormalClosure, "upload expired")
			return nil
		}
		if first || snap != last {
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(snap); err != nil {
				h.log.Debug("progress push stopped", "upload", id, "err", err)
				return nil
			}
			last, first = snap, false
		}
		if snap.Finished() {
			h.closeWith(ws, websocket.CloseNormalClosure, string(snap.Status))
			return nil
		}

		select {
		case <-gone:
			return nil
		case <-ticker.C:
		}
	}
}

func (h *ProgressHandlerImpl) closeWith(ws *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
