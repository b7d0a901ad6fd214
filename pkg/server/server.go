// Package server is the composition root: it builds every component of
// the conversational core from configuration and returns a ready HTTP
// handler plus the resources main.go must close on shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/api"
	"github.com/Alhassan777/Nura-AI-sub001/internal/api/handlers"
	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
	"github.com/Alhassan777/Nura-AI-sub001/internal/contacts"
	"github.com/Alhassan777/Nura-AI-sub001/internal/coordinator"
	"github.com/Alhassan777/Nura-AI-sub001/internal/crisis"
	"github.com/Alhassan777/Nura-AI-sub001/internal/fastpath"
	"github.com/Alhassan777/Nura-AI-sub001/internal/history"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/internal/memorysvc"
	"github.com/Alhassan777/Nura-AI-sub001/internal/outreach"
	"github.com/Alhassan777/Nura-AI-sub001/internal/telemetry"
)

// Server holds the initialized conversational core.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Port is the port the server should listen on.
	Port int

	// Store is the cache store; closed on shutdown.
	Store *cache.Store

	// History is the conversation history reader; closed on shutdown.
	History history.Reader

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the core with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Cache backend
	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "badger":
		backend, err = cache.NewBadgerBackend(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("init badger cache: %w", err)
		}
		log.Info().Str("path", cfg.Cache.Path).Msg("Badger cache initialized")
	default:
		backend = cache.NewMemoryBackend()
		log.Info().Msg("In-memory cache initialized")
	}
	store := cache.NewStore(backend, cache.ClassesFromConfig(cfg.Cache))

	// Conversation history
	var hist history.Reader
	if cfg.History.DatabaseURL != "" {
		hist, err = history.NewPostgresReader(ctx, cfg.History.DatabaseURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
	} else {
		hist = history.NewMemoryReader()
		log.Info().Msg("In-memory history reader initialized")
	}

	// Model client with rate-limit retry
	model := llm.NewRetryingClient(llm.NewHTTPClient(cfg.Model), cfg.Model)
	log.Info().
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Model).
		Msg("Model client initialized")

	// Crisis collaborators
	directory := contacts.NewMemoryDirectory()
	dispatcher := outreach.NewDispatcher(cfg.Outreach)
	escalator := crisis.NewEscalator(directory, dispatcher)

	// Background pipeline and fast path
	memory := memorysvc.NewClient(cfg.Memory)
	coord := coordinator.New(store, model, memory, hist, escalator, cfg.History.WindowSize)
	orchestrator := fastpath.New(store, model, coord)

	h := handlers.New(orchestrator, coord, store)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Port:         cfg.Port,
		Store:        store,
		History:      hist,
		ShutdownFunc: shutdown,
	}, nil
}
