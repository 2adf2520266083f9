package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minisite/cache"
	"minisite/config"
	"minisite/core/events"
	"minisite/core/playback"
	"minisite/core/publish"
	"minisite/core/snapshot"
	"minisite/db"
	"minisite/logger"
	"minisite/model"
	"minisite/repository"
	"minisite/storage"

	"github.com/gorilla/mux"
)

// NewRouter 注册所有路由
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, requestLogMiddleware, h.metrics.Middleware)

	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet)

	// master-save
	router.HandleFunc("/api/master-save", h.write(h.MasterSaveHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/master-save/patch", h.write(h.PatchHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/master-save/latest/{projectId}", h.LatestHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/master-save/snapshot", h.SnapshotHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/master-save/events/{projectId}", h.EventsHandler).Methods(http.MethodGet)

	// 发布
	router.HandleFunc("/api/publish-minisite", h.write(h.PublishHandler)).Methods(http.MethodPost)

	// 项目
	router.HandleFunc("/api/projects", h.write(h.CreateProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{projectId}", h.GetProjectHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/draft", h.GetDraftHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{projectId}/draft", h.write(h.PutDraftHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{projectId}/publications", h.PublicationsHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/playback-url", h.PlaybackURLHandler).Methods(http.MethodGet)

	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/" + publicPrefix).Handler(NewPublicHandler(h.store)).Methods(http.MethodGet, http.MethodHead)

	return router
}

// saveObservers fans a save notification out to several listeners.
type saveObservers []snapshot.Notifier

func (o saveObservers) SnapshotSaved(ctx context.Context, pointer model.LatestPointer, section model.Section) {
	for _, n := range o {
		n.SnapshotSaved(ctx, pointer, section)
	}
}

// registryObserver records master saves in the project registry. Failures are only logged.
type registryObserver struct {
	repo repository.ProjectRepository
}

func (o registryObserver) SnapshotSaved(ctx context.Context, pointer model.LatestPointer, section model.Section) {
	if pointer.LastMasterSaveAt == "" {
		// 新建项目的初始快照，还没有 master save
		return
	}
	at, err := time.Parse(model.TimeLayout, pointer.LastMasterSaveAt)
	if err != nil {
		at = time.Now()
	}
	if err := o.repo.TouchMasterSave(ctx, pointer.ProjectID, pointer.LatestSnapshotKey, at); err != nil {
		logger.Warn("failed to record master save in registry",
			logger.String("projectId", pointer.ProjectID),
			logger.ErrorField(err))
	}
}

// OpenStore returns the object store selected by the configuration.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendMinio:
		return storage.NewMinioStore(ctx, cfg)
	case config.BackendFS:
		return storage.NewFSStore(cfg.FSRoot)
	case config.BackendMemory:
		logger.Warn("using in-memory storage, snapshots are lost on restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Start initializes and starts the HTTP server.
func Start(cfg *config.Config) error {
	ctx := context.Background()

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Info("storage ready", logger.String("backend", cfg.StorageBackend))

	hub := events.NewHub()
	go hub.Run()
	defer hub.Stop()

	observers := saveObservers{hub}
	deps := Deps{Config: cfg, Store: store, Hub: hub, Metrics: NewMetrics()}

	if cfg.RegistryEnabled() {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrate(db.GormDB); err != nil {
			return err
		}
		deps.Registry = repository.NewGormProjectRepository(db.GormDB)
		observers = append(observers, registryObserver{repo: deps.Registry})
	}

	var urlCache playback.URLCache
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()
		logger.Info("connected to Redis")
		deps.Drafts = cache.NewProjectCache(cache.RedisClient, cfg.DraftTTL)
		urlCache = cache.NewPlaybackCache(cache.RedisClient)
	}

	if presigner, ok := store.(storage.Presigner); ok {
		deps.Playback = playback.NewResolver(presigner, urlCache, cfg.PlaybackURLTTL, logger.L())
	}

	deps.Snapshots = snapshot.NewService(store,
		snapshot.WithSongCount(cfg.SongCount),
		snapshot.WithLogger(logger.L()),
		snapshot.WithNotifier(observers))

	if cfg.PublicBaseURL == "" {
		logger.Warn("PUBLIC_BASE_URL is not set, publish will return root-relative urls served from /public/")
	}
	pubOpts := []publish.Option{
		publish.WithBaseURL(cfg.PublicBaseURL),
		publish.WithLogger(logger.L()),
	}
	if cfg.VerifyPublishSnapshot {
		pubOpts = append(pubOpts, publish.WithVerifier(deps.Snapshots))
	}
	if deps.Registry != nil {
		pubOpts = append(pubOpts, publish.WithRecorder(deps.Registry))
	}
	pubOpts = append(pubOpts, publish.WithRecorder(deps.Snapshots))
	deps.Publisher = publish.NewPublisher(store, pubOpts...)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(NewAPIHandler(deps)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-stop:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
