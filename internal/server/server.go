// Package server assembles the gateway: store, embedder, cookie
// provider, request executor, logging pipeline, MCP tool surface, and
// the transports that expose them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/probegate/probegate/internal/config"
	"github.com/probegate/probegate/internal/cookies"
	"github.com/probegate/probegate/internal/embeddings"
	"github.com/probegate/probegate/internal/httpexec"
	"github.com/probegate/probegate/internal/pipeline"
	"github.com/probegate/probegate/internal/resources"
	"github.com/probegate/probegate/internal/store"
	"github.com/probegate/probegate/internal/telemetry"
	"github.com/probegate/probegate/internal/tools"
)

// Server bundles the assembled components and their shutdown hooks.
type Server struct {
	Config  *config.Config
	Store   store.Store
	MCP     *mcpsdk.Server
	Gateway *tools.Gateway

	telemetryShutdown func(context.Context) error
}

// New builds a fully wired server from configuration.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	telShutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(ctx, cfg.Database, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	ck := cookies.NewProvider(cfg.Cookies)
	exec := httpexec.New(cfg.HTTP)
	pipe := pipeline.New(st, cfg.HTTP.MaxBodyBytes, cfg.HTTP.ExtraSensitive)
	gw := tools.NewGateway(st, exec, pipe, embedder, ck)

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "probegate",
		Version: cfg.Version,
	}, nil)
	gw.Register(mcpServer)
	resources.RegisterCookieSessions(mcpServer, ck)
	resources.RegisterPrompts(mcpServer, config.PromptsDir())

	return &Server{
		Config:            cfg,
		Store:             st,
		MCP:               mcpServer,
		Gateway:           gw,
		telemetryShutdown: telShutdown,
	}, nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (embeddings.Embedder, error) {
	switch cfg.Driver {
	case "static":
		log.Info().Msg("using static embedder")
		return embeddings.NewStatic(0), nil
	case "ollama", "":
		emb := embeddings.NewOllama(cfg.OllamaURL, cfg.Model)
		if err := emb.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).
				Str("endpoint", cfg.OllamaURL).
				Msg("Ollama unreachable, embeddings will fail until it comes up")
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("unknown embeddings driver %q", cfg.Driver)
	}
}

func buildStore(ctx context.Context, cfg config.DatabaseConfig, dims int) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Info().Msg("using in-memory store")
		return store.NewMemoryStore(), nil
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.URL, cfg.MaxConnections, dims)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return st, nil
	case "":
		// No explicit driver: use postgres when a URL is configured.
		// Without one, a silent in-memory fallback would masquerade as
		// persistence, so run disabled and let each tool report it.
		if cfg.URL != "" {
			st, err := store.NewPostgresStore(ctx, cfg.URL, cfg.MaxConnections, dims)
			if err != nil {
				return nil, fmt.Errorf("postgres store: %w", err)
			}
			return st, nil
		}
		log.Warn().Msg("DATABASE_URL not set, storage disabled")
		return store.NewDisabledStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// RunStdio serves the MCP server over stdin/stdout until ctx is done.
func (s *Server) RunStdio(ctx context.Context) error {
	log.Info().Str("transport", "stdio").Msg("probegate ready")
	return s.MCP.Run(ctx, &mcpsdk.StdioTransport{})
}

// Handler returns the HTTP handler exposing the MCP server at /mcp
// plus a health endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(requestLogger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Last-Event-ID"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		// A deliberately disabled store is not an outage; requests
		// still flow, only persistence tools are off.
		if err := s.Store.Ping(req.Context()); err != nil && !errors.Is(err, store.ErrStoreUnavailable) {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, s.Config.Version)
	})

	mcpHandler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.MCP
	}, nil)
	r.Handle("/mcp", mcpHandler)
	r.Handle("/mcp/*", mcpHandler)

	return r
}

// Shutdown releases the store and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Store.Close()
	if s.telemetryShutdown != nil {
		if terr := s.telemetryShutdown(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}
