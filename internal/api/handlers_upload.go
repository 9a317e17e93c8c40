// handlers_upload.go - Upload, listing, download and delete handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/metrics"
	"github.com/lanbox/backend/internal/models"
	"github.com/lanbox/backend/internal/storage"
	"github.com/lanbox/backend/internal/upload"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// HeaderUploadID lets a client pick the id it will poll progress with.
	HeaderUploadID = "X-Upload-Id"

	// MIMEApplicationMsgpack selects the msgpack encoding of /files.
	MIMEApplicationMsgpack = "application/msgpack"

	// multipartSlack is how far Content-Length may exceed the file limit
	// before the request is refused without reading it.
	multipartSlack = 64 * 1024

	mirrorTimeout = 10 * time.Minute
)

var errNoFilePart = errors.New("no file part")

// uploadResponse is the success body of POST /upload.
type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.UploadResult
	UploadID string `json:"uploadId"`
}

// filesResponse is the body of GET /files.
type filesResponse struct {
	Success bool                 `json:"success" msgpack:"success"`
	Files   []*models.StoredFile `json:"files" msgpack:"files"`
}

// messageResponse is a bare success acknowledgement.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UploadHandlerImpl implements the FileHandler interface
type UploadHandlerImpl struct {
	store   storage.Store
	uploads *upload.Manager
	journal Journal
	mirror  Mirror
	metrics *metrics.Metrics
	maxSize int64
	log     *log.Logger

	// async runs background work such as mirroring. Tests make it synchronous.
	async func(func())
}

// NewUploadHandler creates a new upload handler instance. journal, mirror and
// m may be nil.
func NewUploadHandler(store storage.Store, uploads *upload.Manager, journal Journal, mirror Mirror, m *metrics.Metrics, maxSize int64) *UploadHandlerImpl {
	if uploads == nil {
		uploads = upload.NewManager(upload.DefaultRetention)
	}
	return &UploadHandlerImpl{
		store:   store,
		uploads: uploads,
		journal: journal,
		mirror:  mirror,
		metrics: m,
		maxSize: maxSize,
		log:     logging.For("upload"),
		async:   func(f func()) { go f() },
	}
}

// HandleUpload streams the multipart field "file" to the upload directory.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	req := c.Request()
	if h.maxSize > 0 && req.ContentLength > h.maxSize+multipartSlack {
		return NewTooLargeError(h.maxSize)
	}

	mr, err := req.MultipartReader()
	if err != nil {
		return NewNoFileError()
	}
	part, err := nextFilePart(mr)
	if err != nil {
		if errors.Is(err, errNoFilePart) {
			return NewNoFileError()
		}
		return NewBadRequestError("malformed multipart body", err)
	}
	defer part.Close()

	originalName := part.FileName()
	job := h.uploads.StartJob(uploadID(c), originalName, req.ContentLength)
	h.metrics.UploadStarted()

	ctx, span := startSpan(req.Context(), "storage.save",
		attribute.String("lanbox.original_name", originalName),
		attribute.String("lanbox.upload_id", job.ID))
	res, err := h.store.Save(originalName, io.TeeReader(part, job))
	endSpan(span, err)

	if err != nil {
		h.uploads.Fail(job, err)
		h.metrics.UploadFinished(false, 0)
		if errors.Is(err, storage.ErrTooLarge) {
			h.log.Warn("upload rejected", "file", originalName, "limit", h.maxSize)
			return NewTooLargeError(h.maxSize)
		}
		return NewInternalError("Upload failed: "+err.Error(), err)
	}

	h.uploads.Complete(job, res.Size)
	h.metrics.UploadFinished(true, res.Size)
	h.log.Info("file uploaded", "file", res.Filename, "original", originalName, "size", res.Size, "remote", c.RealIP())

	h.record(ctx, models.Event{Kind: models.EventUpload, Filename: res.Filename, Size: res.Size, Remote: c.RealIP()})
	if h.mirror != nil {
		name, path := res.Filename, res.Path
		h.async(func() {
			ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			defer cancel()
			if err := h.mirror.Put(ctx, name, path); err != nil {
				h.log.Error("mirror upload failed", "file", name, "err", err)
			}
		})
	}

	return c.JSON(http.StatusOK, uploadResponse{
		Success:      true,
		Message:      "File uploaded successfully",
		UploadResult: res,
		UploadID:     job.ID,
	})
}

// nextFilePart skips form fields until the "file" part. A file input left
// empty by the browser arrives with an empty filename and counts as missing.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func uploadID(c echo.Context) string {
	if id := c.Request().Header.Get(HeaderUploadID); id != "" {
		return id
	}
	return c.QueryParam("uploadId")
}

// HandleListFiles returns the upload directory contents. Clients sending
// Accept: application/msgpack get the same document as msgpack.
func (h *UploadHandlerImpl) HandleListFiles(c echo.Context) error {
	files, err := h.store.List()
	if err != nil {
		return NewInternalError("Failed to list files", err)
	}

	resp := filesResponse{Success: true, Files: files}
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleDownload streams a stored file as an attachment.
func (h *UploadHandlerImpl) HandleDownload(c echo.Context) error {
	name, err := fileParam(c)
	if err != nil {
		return NewInvalidNameError(name)
	}

	rc, info, err := h.store.Open(name)
	if err != nil {
		return storageError(err, name, "Download failed")
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))

	h.metrics.Downloaded(info.Size)
	h.record(c.Request().Context(), models.Event{Kind: models.EventDownload, Filename: name, Size: info.Size, Remote: c.RealIP()})

	return c.Stream(http.StatusOK, contentType, rc)
}

// HandleDeleteFile removes a stored file.
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	name, err := fileParam(c)
	if err != nil {
		return NewInvalidNameError(name)
	}

	info, err := h.store.Delete(name)
	if err != nil {
		return storageError(err, name, "Delete failed")
	}

	h.metrics.Deleted()
	h.log.Info("file deleted", "file", name, "remote", c.RealIP())
	h.record(c.Request().Context(), models.Event{Kind: models.EventDelete, Filename: name, Size: info.Size, Remote: c.RealIP()})
	if h.mirror != nil {
		h.async(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.mirror.Remove(ctx, name); err != nil {
				h.log.Error("mirror delete failed", "file", name, "err", err)
			}
		})
	}

	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "File deleted successfully"})
}

// record appends to the journal. Failures are logged and never surface to the client.
func (h *UploadHandlerImpl) record(ctx context.Context, ev models.Event) {
	if h.journal == nil {
		return
	}
	if err := h.journal.Record(ctx, ev); err != nil {
		h.log.Warn("journal write failed", "kind", ev.Kind, "file", ev.Filename, "err", err)
	}
}

// fileParam returns the :filename route parameter, decoded and validated as a
// single path segment.
func fileParam(c echo.Context) (string, error) {
	name := c.Param("filename")
	if c.Request().URL.RawPath != "" {
		decoded, err := url.PathUnescape(name)
		if err != nil {
			return name, fmt.Errorf("%w: %v", storage.ErrInvalidName, err)
		}
		name = decoded
	}
	return name, storage.ValidateName(name)
}
