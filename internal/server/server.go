// Package server assembles the wledd daemon: registry, fleet controller,
// discovery, release catalog refresh, and the HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/wledfleet/wledd/internal/config"
	"github.com/wledfleet/wledd/internal/discovery"
	"github.com/wledfleet/wledd/internal/events"
	"github.com/wledfleet/wledd/internal/firstcontact"
	"github.com/wledfleet/wledd/internal/fleet"
	"github.com/wledfleet/wledd/internal/http/handlers"
	"github.com/wledfleet/wledd/internal/http/mw"
	"github.com/wledfleet/wledd/internal/http/routes"
	"github.com/wledfleet/wledd/internal/registry"
	"github.com/wledfleet/wledd/internal/updates"
	"github.com/wledfleet/wledd/internal/ws"
)

// BuildInfo carries version metadata injected at build time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Server owns the daemon's long-running components.
type Server struct {
	logger *slog.Logger
	cfg    *config.Config
	build  BuildInfo

	bus      *events.Bus
	store    *registry.Store
	resolver *firstcontact.Resolver
	fleet    *fleet.Controller
	browser  *discovery.Browser
	catalog  *updates.CatalogSource

	httpServer *http.Server
	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New wires the daemon's components together. Nothing runs until Start.
func New(logger *slog.Logger, cfg *config.Config, build BuildInfo) (*Server, error) {
	bus := events.NewBus()

	store, err := registry.NewStore(cfg.RegistryFile, logger, bus)
	if err != nil {
		return nil, err
	}

	resolver := firstcontact.NewResolver(store, logger, cfg.Device.InfoTimeout())
	checker := updates.NewChecker()

	controller := fleet.NewController(store, resolver, checker, bus, logger, fleet.Config{
		BackoffBase: cfg.Device.ReconnectBase(),
		BackoffCap:  cfg.Device.ReconnectCap(),
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())

	s := &Server{
		logger:     logger,
		cfg:        cfg,
		build:      build,
		bus:        bus,
		store:      store,
		resolver:   resolver,
		fleet:      controller,
		catalog:    updates.NewCatalogSource(cfg.Updates.Repository, logger),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}

	if cfg.Discovery.Enabled {
		s.browser = discovery.NewBrowser(logger, cfg.Discovery.Interval(), controller.HandleDiscovery)
	}

	return s, nil
}

// Start brings the daemon up: fleet controller, discovery, catalog refresh,
// WebSocket hub, and the HTTP API.
func (s *Server) Start() error {
	s.logger.Info("Starting wledd server", "devices", len(s.store.FetchAll()))

	s.fleet.Start()

	if s.browser != nil {
		s.browser.Scan(s.rootCtx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.catalog.Run(s.rootCtx, s.cfg.Updates.Interval(), s.fleet.UpdateCatalog)
	}()

	if s.cfg.API.ListenAddress != "" {
		s.startHTTPServer()
	}

	return nil
}

func (s *Server) startHTTPServer() {
	s.logger.Info("Starting HTTP API server", "address", s.cfg.API.ListenAddress)

	deviceHandler := &handlers.DeviceHandler{Fleet: s.fleet, Store: s.store}
	fleetHandler := &handlers.FleetHandler{Fleet: s.fleet}
	versionHandler := &handlers.VersionHandler{
		Version:   s.build.Version,
		Commit:    s.build.Commit,
		BuildDate: s.build.BuildDate,
	}

	router := chi.NewRouter()
	router.Use(mw.RequestLogging(s.logger))
	router.Use(mw.RateLimitByIP(mw.DefaultRateLimitConfig()))

	humaConfig := routes.NewHumaConfig(s.build.Version, "")
	api := humachi.New(router, humaConfig)

	routes.Register(api, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Version:     versionHandler,
		Device:      deviceHandler,
		Fleet:       fleetHandler,
	})

	// WebSocket event feed: the hub broadcasts bus events to API clients.
	wsHub := ws.NewHub(s.logger, s.bus)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wsHub.Run(s.rootCtx)
	}()
	router.Get("/api/v1/ws", ws.Handler(wsHub, s.logger))

	s.httpServer = &http.Server{
		Addr:         s.cfg.API.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", "error", err)
		}
		s.logger.Info("HTTP server stopped")
	}()
}

// Stop gracefully shuts the daemon down: the HTTP server first, then
// discovery and catalog loops, then every device connection.
func (s *Server) Stop() {
	s.logger.Info("Shutting down wledd server")
	s.rootCancel()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown failed", "error", err)
		}
	}

	s.fleet.Stop()

	s.wg.Wait()
	s.logger.Info("wledd server shut down gracefully")
}
