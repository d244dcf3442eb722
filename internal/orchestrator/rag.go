package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yates-Labs/ragify/internal/narrative"
	"github.com/Yates-Labs/ragify/internal/persona"
	"github.com/Yates-Labs/ragify/internal/rag"
)

var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrInvalidPersona = errors.New("invalid persona")
	ErrPipelineFailed = errors.New("rag pipeline failed")
)

// ChatRequest is one user turn sent to the query pipeline.
type ChatRequest struct {
	Message string `json:"message"`
	Persona string `json:"persona"`
}

// RAGConfig holds configuration for the RAG query pipeline.
type RAGConfig struct {
	// TopK is the number of chunks to retrieve as context
	TopK int

	// MaxContextChars caps the serialized context; 0 disables the cap
	MaxContextChars int

	// RequestTimeout bounds a whole request including streaming; 0 means none
	RequestTimeout time.Duration

	// Debug enables per-stage logging
	Debug bool
}

// DefaultRAGConfig returns the defaults for the query pipeline.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:            3,
		MaxContextChars: 24000,
	}
}

// PreparedPrompt is the outcome of every stage before completion.
type PreparedPrompt struct {
	Persona      string
	SystemPrompt string
	Chunks       []rag.RetrievedChunk
}

// Pipeline answers chat requests: validate, embed, retrieve, assemble the
// grounded system prompt and stream the completion.
type Pipeline struct {
	config    RAGConfig
	personas  *persona.Table
	retriever *rag.Retriever
	generator *narrative.Generator
}

// NewPipeline wires the query pipeline from its collaborators.
func NewPipeline(
	personas *persona.Table,
	embedder rag.Embedder,
	index rag.VectorIndex,
	completer narrative.Completer,
	llmConfig narrative.LLMConfig,
	config RAGConfig,
) (*Pipeline, error) {
	if personas == nil || personas.Len() == 0 {
		return nil, fmt.Errorf("persona table cannot be empty")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer cannot be nil")
	}
	if config.TopK <= 0 {
		config.TopK = DefaultRAGConfig().TopK
	}

	retriever, err := rag.NewRetriever(embedder, index)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return &Pipeline{
		config:    config,
		personas:  personas,
		retriever: retriever,
		generator: narrative.NewGenerator(completer, llmConfig),
	}, nil
}

// Personas returns the table requests are validated against.
func (p *Pipeline) Personas() *persona.Table {
	return p.personas
}

// validate checks the request without any external call and returns the persona template.
func (p *Pipeline) validate(req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}
	template, ok := p.personas.Lookup(req.Persona)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPersona, req.Persona)
	}
	return template, nil
}

// Prepare runs validation, retrieval and prompt assembly.
func (p *Pipeline) Prepare(ctx context.Context, req ChatRequest) (*PreparedPrompt, error) {
	return p.prepare(ctx, req, "")
}

func (p *Pipeline) prepare(ctx context.Context, req ChatRequest, id string) (*PreparedPrompt, error) {
	template, err := p.validate(req)
	if err != nil {
		return nil, err
	}
	p.debugf(id, "Stage 1: validated (persona=%s)", strings.ToLower(strings.TrimSpace(req.Persona)))

	p.debugf(id, "Stage 2: retrieving top-%d chunks", p.config.TopK)
	chunks, err := p.retriever.RetrieveContextForQuery(ctx, req.Message, p.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval: %w", ErrPipelineFailed, err)
	}
	p.debugf(id, "Retrieved %d context chunks", len(chunks))

	fitted, serialized, err := narrative.FitContext(chunks, p.config.MaxContextChars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}
	if contextTrimmed(chunks, fitted) {
		log.Printf("[RAG Pipeline] %s context trimmed to %d of %d chunks (limit %d chars)",
			id, len(fitted), len(chunks), p.config.MaxContextChars)
	}

	systemPrompt := narrative.AssembleSystemPrompt(template, serialized)
	p.debugf(id, "Stage 3: assembled system prompt (%d characters)", len(systemPrompt))

	return &PreparedPrompt{
		Persona:      strings.ToLower(strings.TrimSpace(req.Persona)),
		SystemPrompt: systemPrompt,
		Chunks:       fitted,
	}, nil
}

// Stream runs the pipeline and returns the completion's fragments in arrival
// order. ErrEmptyMessage and ErrInvalidPersona are returned before any
// external call; every other failure wraps ErrPipelineFailed. Cancelling ctx
// stops the completion.
func (p *Pipeline) Stream(ctx context.Context, req ChatRequest) (<-chan narrative.Fragment, error) {
	id := uuid.NewString()[:8]
	ctx, cancel := p.withTimeout(ctx)

	prepared, err := p.prepare(ctx, req, id)
	if err != nil {
		cancel()
		return nil, err
	}
	return p.complete(ctx, cancel, id, req.Message, prepared)
}

// StreamPrepared streams the completion for a prompt returned by Prepare,
// without retrieving again.
func (p *Pipeline) StreamPrepared(ctx context.Context, req ChatRequest, prepared *PreparedPrompt) (<-chan narrative.Fragment, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if prepared == nil || prepared.SystemPrompt == "" {
		return nil, fmt.Errorf("%w: prompt was not prepared", ErrPipelineFailed)
	}

	ctx, cancel := p.withTimeout(ctx)
	return p.complete(ctx, cancel, uuid.NewString()[:8], req.Message, prepared)
}

func (p *Pipeline) complete(ctx context.Context, cancel context.CancelFunc, id, message string, prepared *PreparedPrompt) (<-chan narrative.Fragment, error) {
	p.debugf(id, "Stage 4: streaming completion (%s)", p.generator.Model())
	fragments, err := p.generator.Stream(ctx, prepared.SystemPrompt, message)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}

	if p.config.RequestTimeout <= 0 {
		return fragments, nil
	}
	return relay(ctx, fragments, cancel), nil
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.config.RequestTimeout)
}

// Answer runs Stream and collects the complete answer.
func (p *Pipeline) Answer(ctx context.Context, req ChatRequest) (string, error) {
	fragments, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	answer, err := narrative.Collect(fragments)
	if err != nil {
		return answer, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}
	return answer, nil
}

// relay forwards fragments unbuffered and releases the timeout context once
// the upstream channel closes.
func relay(ctx context.Context, in <-chan narrative.Fragment, cancel context.CancelFunc) <-chan narrative.Fragment {
	out := make(chan narrative.Fragment)
	go func() {
		defer close(out)
		defer cancel()
		for f := range in {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func contextTrimmed(before, after []rag.RetrievedChunk) bool {
	if len(after) < len(before) {
		return true
	}
	return len(after) == 1 && len(after[0].Text) != len(before[0].Text)
}

func (p *Pipeline) debugf(id, format string, args ...any) {
	if !p.config.Debug {
		return
	}
	log.Printf("[RAG Pipeline] %s "+format, append([]any{id}, args...)...)
}
