package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/ragify/internal/orchestrator"
	"github.com/Yates-Labs/ragify/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the chat and ingestion API.

Routes:
  POST /api/chat-stream   {message, persona} -> server-sent events
  POST /api/upload        multipart field "file" (.txt .pdf .docx .doc .csv)
  POST /api/sources/text  {title, content}
  POST /api/sources/url   {url, title}
  GET  /api/sources       catalog listing (when catalog.path is set)
  GET  /api/personas
  GET  /health

URL sources are only fetched from public addresses; loopback, private and
link-local hosts are rejected with 400 "Invalid URL".

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings and chat
  QDRANT_URL         - Qdrant gRPC endpoint (default: http://localhost:6334)
                       This is the gRPC port 6334, not the REST port 6333.

Examples:
  ragify serve
  ragify serve --addr :8080 --config ragify.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := orchestrator.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer rt.Close()

	var sources server.SourceLister
	if rt.Catalog != nil {
		sources = rt.Catalog
	}

	srv := server.NewServer(rt.Pipeline, rt.Ingestor, sources, rt.Personas)
	return srv.Run(ctx, cfg.Server.Addr)
}
