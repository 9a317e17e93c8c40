// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/metrics"
	"github.com/lanbox/backend/internal/storage"
	"github.com/lanbox/backend/internal/upload"
	"github.com/lanbox/backend/internal/web"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Uploads       *upload.Manager
	Journal       Journal
	Mirror        Mirror
	Metrics       *metrics.Metrics
	Port          int
	MaxUploadSize int64
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Files    FileHandler
	Progress ProgressHandler
	Info     InfoHandler
	Stats    StatsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	uploads := deps.Uploads
	if uploads == nil {
		uploads = upload.NewManager(upload.DefaultRetention)
	}
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, uploads),
		Files:    NewUploadHandler(deps.Store, uploads, deps.Journal, deps.Mirror, deps.Metrics, deps.MaxUploadSize),
		Progress: NewProgressHandler(uploads),
		Info:     NewInfoHandler(deps.Port),
		Stats:    NewStatsHandler(deps.Journal),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)

	// File routes
	e.POST("/upload", handlers.Files.HandleUpload)
	e.GET("/files", handlers.Files.HandleListFiles)
	e.DELETE("/files/:filename", handlers.Files.HandleDeleteFile)
	e.GET("/download/:filename", handlers.Files.HandleDownload)

	// Progress
	e.GET("/upload-progress/:id", handlers.Progress.HandleUploadProgress)
	e.GET("/ws/upload-progress/:id", handlers.Progress.HandleProgressWebSocket)

	// Discovery
	e.GET("/server-info", handlers.Info.HandleServerInfo)
	e.GET("/server-info/qrcode", handlers.Info.HandleServerQRCode)

	e.GET("/stats", handlers.Stats.HandleStats)
}

// RouterOptions toggles the optional middleware.
type RouterOptions struct {
	EnableCORS     bool
	AllowOrigins   []string
	RequestLogging bool
	Compression    bool
	Tracing        bool
}

// NewRouter builds the complete Echo instance: middleware, API routes,
// /metrics when deps.Metrics is set, and the embedded client page.
func NewRouter(deps *Dependencies, opts RouterOptions) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = SonicSerializer{}

	SetupMiddleware(e, deps.Metrics, opts)
	RegisterRoutes(e, NewHandlers(deps))

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}
	if err := web.RegisterStaticRoutes(e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics, opts RouterOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.For("http").Error("panic recovered", "path", c.Request().URL.Path, "err", err, "stack", string(stack))
			return err
		},
	}))

	if opts.RequestLogging {
		logger := logging.For("http")
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/health" ||
					path == "/metrics" ||
					strings.HasPrefix(path, "/upload-progress/")
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []interface{}{
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency", v.Latency.Round(time.Microsecond),
					"remote", v.RemoteIP,
				}
				if v.Error != nil {
					logger.Warn("request", append(fields, "err", v.Error)...)
					return nil
				}
				logger.Info("request", fields...)
				return nil
			},
		}))
	}

	if opts.Tracing {
		e.Use(Tracing())
	}
	if m != nil {
		e.Use(m.Middleware())
	}

	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasPrefix(path, "/download/") ||
					strings.HasPrefix(path, "/ws/") ||
					path == "/server-info/qrcode"
			},
		}))
	}

	if opts.EnableCORS {
		origins := opts.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, HeaderUploadID},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}
}
