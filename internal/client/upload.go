package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lanbox/backend/internal/models"
	"golang.org/x/time/rate"
)

// State is where a single upload is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// progressEvery throttles progress callbacks; the final one is always sent.
const progressEvery = 100 * time.Millisecond

// Progress is the sender-side view of an upload.
type Progress struct {
	Sent    int64
	Total   int64
	Percent int
	Rate    float64 // bytes per second
	Elapsed time.Duration
}

// UploadSession is the state of one file's upload. Each call to Upload owns
// its own session.
type UploadSession struct {
	ID       string
	File     string
	State    State
	Progress Progress
	Result   *models.UploadResult
	Err      error
}

// ProgressFunc receives the session on every state change and, while
// sending, at most every 100ms.
type ProgressFunc func(s UploadSession)

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	models.UploadResult
	UploadID string `json:"uploadId"`
}

// Upload sends one file as the multipart field "file". The returned session
// is also populated when err is non-nil.
func (c *Client) Upload(ctx context.Context, path string, onProgress ProgressFunc) (*UploadSession, error) {
	s := &UploadSession{ID: uuid.New().String(), File: path, State: StateIdle}

	// The transport reads the body on its own goroutine, so every change to s
	// goes through update. Nothing is applied once the upload has finished.
	var mu sync.Mutex
	done := false
	update := func(apply func(*UploadSession)) {
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		apply(s)
		done = s.State == StateSucceeded || s.State == StateFailed
		snap := *s
		mu.Unlock()
		if onProgress != nil {
			onProgress(snap)
		}
	}
	update(func(*UploadSession) {})

	fail := func(err error) (*UploadSession, error) {
		update(func(s *UploadSession) {
			s.State = StateFailed
			s.Err = err
		})
		return s, err
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("%s is not a regular file", path))
	}

	head, tail, contentType, err := multipartFrame(filepath.Base(path))
	if err != nil {
		return fail(err)
	}

	update(func(s *UploadSession) {
		s.State = StateUploading
		s.Progress.Total = info.Size()
	})

	counter := &progressReader{
		ctx:     ctx,
		r:       f,
		limiter: c.limiter,
		started: time.Now(),
		onRead: func(p Progress) {
			update(func(s *UploadSession) { s.Progress = p })
		},
		total: info.Size(),
	}
	body := io.MultiReader(bytes.NewReader(head), counter, bytes.NewReader(tail))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), body)
	if err != nil {
		return fail(err)
	}
	req.ContentLength = int64(len(head)) + info.Size() + int64(len(tail))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upload-Id", s.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(fmt.Errorf("upload %s: %w", filepath.Base(path), err))
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return fail(err)
	}

	var out uploadResponse
	if err := decode(resp.Body, &out); err != nil {
		return fail(err)
	}
	counter.flush()

	update(func(s *UploadSession) {
		s.Result = &out.UploadResult
		s.State = StateSucceeded
	})
	return s, nil
}

// UploadAll uploads paths one after another. A failed file does not stop the
// rest; a cancelled context does. Sessions are returned in input order.
func (c *Client) UploadAll(ctx context.Context, paths []string, onProgress ProgressFunc) []*UploadSession {
	sessions := make([]*UploadSession, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			sessions = append(sessions, &UploadSession{File: path, State: StateFailed, Err: ctx.Err()})
			continue
		}
		s, err := c.Upload(ctx, path, onProgress)
		if err != nil {
			c.log.Warn("upload failed", "file", path, "err", err)
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// multipartFrame returns the bytes that go before and after the file content
// so the body can be streamed with an exact Content-Length.
func multipartFrame(filename string) (head, tail []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if _, err := mw.CreateFormFile("file", filename); err != nil {
		return nil, nil, "", err
	}
	head = append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}
	tail = append([]byte(nil), buf.Bytes()...)
	return head, tail, mw.FormDataContentType(), nil
}

// progressReader counts file bytes as the transport pulls them and applies
// the optional bandwidth limit.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	started time.Time
	onRead  func(Progress)
	total   int64

	mu       sync.Mutex
	sent     int64
	lastEmit time.Time
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.limiter != nil && len(b) > p.limiter.Burst() {
		b = b[:p.limiter.Burst()]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		if p.limiter != nil {
			if werr := p.limiter.WaitN(p.ctx, n); werr != nil {
				return n, werr
			}
		}
		p.mu.Lock()
		p.sent += int64(n)
		emit := time.Since(p.lastEmit) >= progressEvery || p.sent == p.total
		if emit {
			p.lastEmit = time.Now()
		}
		p.mu.Unlock()
		if emit {
			p.onRead(p.snapshot())
		}
	}
	return n, err
}

// flush reports the final count once the server has answered.
func (p *progressReader) flush() {
	p.onRead(p.snapshot())
}

func (p *progressReader) snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.started)
	prog := Progress{Sent: p.sent, Total: p.total, Elapsed: elapsed}
	if p.total > 0 {
		prog.Percent = int(p.sent * 100 / p.total)
	} else {
		prog.Percent = 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		prog.Rate = float64(p.sent) / secs
	}
	return prog
}
