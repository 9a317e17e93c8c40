package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/lanbox/backend/internal/models"
	"github.com/lanbox/backend/internal/testutil"
	"github.com/lanbox/backend/internal/upload"
)

// multipartBody builds a form with one file part under field.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	writer.WriteField("note", "ignored")
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	writer.Close()
	return body, writer.FormDataContentType()
}

func newUploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	return req
}

func newFileContext(e *echo.Echo, method, path, name string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("filename")
	c.SetParamValues(name)
	return c, rec
}

type fakeJournal struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (j *fakeJournal) Record(ctx context.Context, ev models.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, ev)
	return nil
}

func (j *fakeJournal) Stats(ctx context.Context, recent int) (*models.Stats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	stats := &models.Stats{Recent: []models.Event{}}
	for _, ev := range j.events {
		switch ev.Kind {
		case models.EventUpload:
			stats.Uploads++
			stats.BytesUploaded += ev.Size
		case models.EventDownload:
			stats.Downloads++
			stats.BytesDownloaded += ev.Size
		case models.EventDelete:
			stats.Deletes++
		}
	}
	return stats, nil
}

func (j *fakeJournal) kinds() []models.EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	var kinds []models.EventKind
	for _, ev := range j.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fakeMirror struct {
	mu      sync.Mutex
	put     []string
	removed []string
	fail    bool
}

func (m *fakeMirror) Put(ctx context.Context, name, localPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("bucket unreachable")
	}
	m.put = append(m.put, name)
	return nil
}

func (m *fakeMirror) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("bucket unreachable")
	}
	m.removed = append(m.removed, name)
	return nil
}

type testUploadHandler struct {
	*UploadHandlerImpl
	store   *testutil.MockStorage
	uploads *upload.Manager
	journal *fakeJournal
	mirror  *fakeMirror
}

func newTestUploadHandler(maxSize int64) *testUploadHandler {
	store := testutil.NewMockStorage()
	store.MaxSize = maxSize
	uploads := upload.NewManager(upload.DefaultRetention)
	journal := &fakeJournal{}
	mirror := &fakeMirror{}

	h := NewUploadHandler(store, uploads, journal, mirror, nil, maxSize)
	h.async = func(f func()) { f() }

	return &testUploadHandler{UploadHandlerImpl: h, store: store, uploads: uploads, journal: journal, mirror: mirror}
}

func assertAPIError(t *testing.T, err error, wantStatus int, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != wantStatus {
		t.Errorf("expected status %d, got %d", wantStatus, apiErr.Status)
	}
	if apiErr.Code != wantCode {
		t.Errorf("expected error code %s, got %s", wantCode, apiErr.Code)
	}
}
