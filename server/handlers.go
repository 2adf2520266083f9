package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"minisite/config"
	"minisite/core/events"
	"minisite/core/playback"
	"minisite/core/publish"
	"minisite/core/snapshot"
	"minisite/model"
	"minisite/repository"
	"minisite/storage"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// DraftStore keeps unsaved project drafts. cache.ProjectCache implements it.
type DraftStore interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Put(ctx context.Context, projectID string, doc *model.Project) error
	Delete(ctx context.Context, projectID string) error
}

// Deps are the collaborators of the HTTP surface. Optional ones may be left nil.
type Deps struct {
	Config    *config.Config
	Store     storage.ObjectStore
	Snapshots *snapshot.Service
	Publisher *publish.Publisher
	Drafts    DraftStore
	Registry  repository.ProjectRepository
	Playback  *playback.Resolver
	Hub       *events.Hub
	Metrics   *Metrics
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg       *config.Config
	store     storage.ObjectStore
	snapshots *snapshot.Service
	publisher *publish.Publisher
	drafts    DraftStore
	registry  repository.ProjectRepository
	playback  *playback.Resolver
	hub       *events.Hub
	metrics   *Metrics

	jwtSecret []byte
	limiter   *rate.Limiter
	upgrader  websocket.Upgrader
	random    io.Reader
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(d Deps) *APIHandler {
	cfg := d.Config
	if cfg == nil {
		cfg = config.FromEnv()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &APIHandler{
		cfg:       cfg,
		store:     d.Store,
		snapshots: d.Snapshots,
		publisher: d.Publisher,
		drafts:    d.Drafts,
		registry:  d.Registry,
		playback:  d.Playback,
		hub:       d.Hub,
		metrics:   metrics,
		jwtSecret: []byte(cfg.JWTSecret),
		limiter:   newWriteLimiter(cfg.WriteRateLimit),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		random: rand.Reader,
	}
}

// write wraps a mutating handler with auth and throttling.
func (h *APIHandler) write(next http.HandlerFunc) http.HandlerFunc {
	return rateLimit(h.limiter, h.AuthMiddleware(next))
}

func (h *APIHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.cfg.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || err == io.EOF {
		return true
	}
	writeErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body: "+err.Error())
	return false
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": model.FormatTime(time.Now()),
	})
}
