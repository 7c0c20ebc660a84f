package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"character-chat/internal/db"
	"character-chat/internal/gateway"
	"character-chat/internal/narrator"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Router holds the HTTP multiplexer and dependencies
type Router struct {
	mux              *http.ServeMux
	chatHandler      *ChatHandler
	imageHandler     *ImageHandler
	personalities    *PersonalityHandler
	chatStoreHandler *ChatStoreHandler
	eventsHandler    *ChatEventsHandler
	broadcaster      *EventBroadcaster
	staticDir        string
	logger           *zap.Logger
}

// NewRouter creates a new router with all routes configured
func NewRouter(database *db.DB, turns *narrator.Service, texts *gateway.TextGateway, images *gateway.ImageGateway, staticDir string, logger *zap.Logger) *Router {
	broadcaster := NewEventBroadcaster(logger)

	r := &Router{
		mux:              http.NewServeMux(),
		chatHandler:      NewChatHandler(turns, logger),
		imageHandler:     NewImageHandler(images, texts, logger),
		personalities:    NewPersonalityHandler(database, logger),
		chatStoreHandler: NewChatStoreHandler(database, turns, images, broadcaster, logger),
		eventsHandler:    NewChatEventsHandler(broadcaster, logger),
		broadcaster:      broadcaster,
		staticDir:        staticDir,
		logger:           logger,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes
func (r *Router) setupRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", HealthHandler)

	// Stateless generation routes
	r.mux.HandleFunc("POST /api/chat", r.chatHandler.HandleChat)
	r.mux.HandleFunc("POST /api/generate-image", r.imageHandler.HandleGenerateImage)
	r.mux.HandleFunc("GET /api/models", r.imageHandler.HandleModels)
	r.mux.HandleFunc("POST /api/models", r.imageHandler.HandleModels)

	// Personality routes
	r.mux.HandleFunc("GET /api/personalities", r.personalities.List)
	r.mux.HandleFunc("POST /api/personalities", r.personalities.Create)
	r.mux.HandleFunc("GET /api/personalities/{id}", r.personalities.Get)
	r.mux.HandleFunc("PUT /api/personalities/{id}", r.personalities.Update)
	r.mux.HandleFunc("DELETE /api/personalities/{id}", r.personalities.Delete)

	// Chat store routes
	r.mux.HandleFunc("GET /api/chats", r.chatStoreHandler.List)
	r.mux.HandleFunc("POST /api/chats", r.chatStoreHandler.Create)
	r.mux.HandleFunc("GET /api/chats/{id}", r.chatStoreHandler.Get)
	r.mux.HandleFunc("DELETE /api/chats/{id}", r.chatStoreHandler.Delete)

	// Message routes
	r.mux.HandleFunc("GET /api/chats/{id}/messages", r.chatStoreHandler.Messages)
	r.mux.HandleFunc("POST /api/chats/{id}/messages", r.chatStoreHandler.SendMessage)

	// SSE events route
	r.mux.HandleFunc("GET /api/chats/{id}/events", r.eventsHandler.HandleEvents)

	// Static file serving (for frontend)
	if r.staticDir != "" {
		r.mux.HandleFunc("GET /", r.serveStatic)
	}
}

// serveStatic serves static files from the static directory
func (r *Router) serveStatic(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	filePath := filepath.Join(r.staticDir, path)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		// Serve index.html for SPA routing
		filePath = filepath.Join(r.staticDir, "index.html")
	}

	http.ServeFile(w, req, filePath)
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Add CORS headers for development
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Skip logging for static files, health checks, and SSE endpoints
	shouldLog := strings.HasPrefix(req.URL.Path, "/api/") && !strings.HasSuffix(req.URL.Path, "/events")

	// Wrap response writer to capture status code
	wrapped := newResponseWriter(w)
	r.mux.ServeHTTP(wrapped, req)

	if shouldLog {
		r.logger.Info("request completed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)))
	}
}

// GetBroadcaster returns the event broadcaster
func (r *Router) GetBroadcaster() *EventBroadcaster {
	return r.broadcaster
}
