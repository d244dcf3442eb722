// Package server exposes the chat and ingestion pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yates-Labs/ragify/internal/catalog"
	"github.com/Yates-Labs/ragify/internal/narrative"
	"github.com/Yates-Labs/ragify/internal/orchestrator"
	"github.com/Yates-Labs/ragify/internal/persona"
)

const shutdownTimeout = 10 * time.Second

// ChatStreamer runs the query pipeline for one request.
type ChatStreamer interface {
	Stream(ctx context.Context, req orchestrator.ChatRequest) (<-chan narrative.Fragment, error)
}

// SourceIngestor runs the ingestion pipeline.
type SourceIngestor interface {
	Ingest(ctx context.Context, filename string, data []byte) (*orchestrator.IngestResult, error)
	IngestText(ctx context.Context, title, text string) (*orchestrator.IngestResult, error)
	IngestURL(ctx context.Context, rawURL, title string) (*orchestrator.IngestResult, error)
}

// SourceLister lists recorded sources.
type SourceLister interface {
	List(ctx context.Context) ([]catalog.Source, error)
}

// Server holds the state for the REST API server.
type Server struct {
	chat     ChatStreamer
	ingestor SourceIngestor
	sources  SourceLister // nil when the catalog is disabled
	personas *persona.Table
	router   *gin.Engine
}

// NewServer creates a new Server instance. sources may be nil.
func NewServer(chat ChatStreamer, ingestor SourceIngestor, sources SourceLister, personas *persona.Table) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		chat:     chat,
		ingestor: ingestor,
		sources:  sources,
		personas: personas,
		router:   r,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	api.POST("/chat-stream", s.handleChatStream)
	api.POST("/upload", s.handleUpload)
	api.POST("/sources/text", s.handleTextSource)
	api.POST("/sources/url", s.handleURLSource)
	api.GET("/sources", s.handleListSources)
	api.GET("/personas", s.handlePersonas)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
