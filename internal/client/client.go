// Package client talks to a lanbox server over HTTP.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/models"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds the small JSON calls. Uploads and downloads use the
// caller's context only.
var DefaultTimeout = 30 * time.Second

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is safe for concurrent use, but uploads made through UploadAll run
// one at a time.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit caps upload bandwidth at bytesPerSec. Zero or less disables it.
func WithRateLimit(bytesPerSec int) Option {
	return func(c *Client) {
		if bytesPerSec <= 0 {
			c.limiter = nil
			return
		}
		burst := max(bytesPerSec/10, 4*1024)
		c.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
}

// New creates a client for the server at baseURL, e.g. http://192.168.1.20:3000.
func New(baseURL string, opts ...Option) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		log:     logging.For("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = u.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	return u.String()
}

type filesResponse struct {
	Success bool                 `json:"success"`
	Files   []*models.StoredFile `json:"files"`
}

type progressResponse struct {
	Success  bool                  `json:"success"`
	Progress models.UploadProgress `json:"progress"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// List returns the server's upload directory.
func (c *Client) List(ctx context.Context) ([]*models.StoredFile, error) {
	var resp filesResponse
	if err := c.getJSON(ctx, c.endpoint("files"), &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// ServerInfo returns the server's port and LAN addresses.
func (c *Client) ServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	var info models.ServerInfo
	if err := c.getJSON(ctx, c.endpoint("server-info"), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Progress returns the server's view of an upload.
func (c *Client) Progress(ctx context.Context, uploadID string) (*models.UploadProgress, error) {
	var resp progressResponse
	if err := c.getJSON(ctx, c.endpoint("upload-progress", uploadID), &resp); err != nil {
		return nil, err
	}
	return &resp.Progress, nil
}

// Download streams a stored file into w and returns the byte count.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("download", name), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", name, err)
	}
	return n, nil
}

// Delete removes a stored file.
func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("files", name), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	return decode(resp.Body, v)
}

func decode(r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkResponse turns a non-2xx response into an *Error, using the server's
// error body when it has one.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &Error{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: http.StatusText(resp.StatusCode)}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body errorResponse
	if len(bytes.TrimSpace(data)) > 0 && sonic.Unmarshal(data, &body) == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Details = body.Details
	}
	return apiErr
}
