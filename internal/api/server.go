package api

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/websocket"
	"github.com/smazurov/edgeviewer/internal/api/models"
	"github.com/smazurov/edgeviewer/internal/capture"
	"github.com/smazurov/edgeviewer/internal/display"
	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/logging"
	"github.com/smazurov/edgeviewer/internal/pipeline"
	"github.com/smazurov/edgeviewer/internal/relay"
	"github.com/smazurov/edgeviewer/internal/snapshot"
	"github.com/smazurov/edgeviewer/internal/version"
	"github.com/smazurov/edgeviewer/ui"
)

const authRealm = `Basic realm="edgeviewer"`

// Controller is the part of the pipeline the API drives.
type Controller interface {
	SetEdgeDetection(enabled bool, source string) bool
	ToggleEdgeDetection(source string) bool
	EdgeDetection() bool
	Stats() pipeline.Stats
}

// Snapshots reads the network relay without consuming it.
type Snapshots interface {
	Peek() (snapshot.Payload, uint64, bool)
}

// Options wires the server to the running pipeline. Pipeline, Gate,
// Snapshots and EventBus are required; the rest are optional.
type Options struct {
	AuthUsername string
	AuthPassword string

	Pipeline  Controller
	Gate      interface{ Stats() gate.Stats }
	Snapshots Snapshots
	EventBus  *events.Bus

	Capture      interface{ Stats() capture.Stats }
	Display      interface{ Stats() display.Stats }
	DisplayRelay interface{ Stats() relay.Stats }
	NetworkRelay interface{ Stats() relay.Stats }
	// DisplayImage returns the last presented frame. Set when the display
	// backend keeps frames in memory.
	DisplayImage func() *image.RGBA

	Devices DeviceLister // Optional, enables /api/devices

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the HTTP API and viewer.
type Server struct {
	api     huma.API
	mux     *http.ServeMux
	options *Options

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
	// streamCtx parents every request so long-lived streams end on Shutdown
	streamCtx    context.Context
	cancelStream context.CancelFunc

	cors     CORSConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare security.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		if msg := checkCredentials(ctx.Header("Authorization"), ctx.Query("auth"), username, password); msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			return
		}
		next(ctx)
	}
}

// requireAuth applies the same credentials to plain handlers.
func (s *Server) requireAuth(h http.Handler) http.Handler {
	username, password := s.options.AuthUsername, s.options.AuthPassword
	if username == "" || password == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if msg := checkCredentials(r.Header.Get("Authorization"), r.URL.Query().Get("auth"), username, password); msg != "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// checkCredentials validates a Basic Authorization header, falling back to a
// base64 "auth" query parameter for clients that cannot set headers (img
// tags, EventSource, WebSocket). It returns a non-empty reason on failure.
func checkCredentials(header, query, username, password string) string {
	var encoded string
	switch {
	case header != "":
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	case query != "":
		encoded = query
	default:
		return "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "Invalid credentials format"
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "Invalid credentials format"
	}
	if user != username || pass != password {
		return "Invalid credentials"
	}
	return ""
}

// NewServer creates the API server with Huma v2 on Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("edgeviewer API", version.String())
	config.Info.Description = "Live video viewer with switchable edge detection"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		cors:    corsConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(*http.Request) bool {
				return corsConfig.AllowOrigin == "*"
			},
		},
		logger: logging.GetLogger("api"),
	}
	server.streamCtx, server.cancelStream = context.WithCancel(context.Background())

	// CORS first, then logging, then auth
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	if frontendHandler, err := ui.Handler(); err == nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			frontendHandler.ServeHTTP(w, r)
		})
	}

	return server
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Shutdown. It returns nil after a clean shutdown,
// including when Shutdown ran first.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
		BaseContext: func(net.Listener) context.Context {
			return s.streamCtx
		},
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting edgeviewer API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for requests to finish.
// Streams still open when ctx expires are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	s.cancelStream()
	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping API server")
	err := srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return srv.Close()
	}
	return err
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API and pipeline health",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		stats := s.options.Pipeline.Stats()
		msg := "Waiting for first frame"
		if stats.Completed > 0 {
			msg = "Pipeline running"
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: msg,
				Frames:  stats.Completed,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get(edges.Backend)
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
				Detector:  info.Detector,
			},
		}, nil
	})

	s.registerEdgeRoutes()
	s.registerFrameRoutes()
	s.registerStatsRoutes()
	s.registerSSERoutes()
	s.registerDeviceRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
