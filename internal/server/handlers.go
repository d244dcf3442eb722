package server

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yates-Labs/ragify/internal/orchestrator"
)

// handleChatStream answers a chat message as a server-sent event stream.
func (s *Server) handleChatStream(c *gin.Context) {
	var req orchestrator.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, NewAppError(http.StatusBadRequest, MsgInvalidBody, err), "")
		return
	}

	fragments, err := s.chat.Stream(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, MsgChatFailed)
		return
	}

	if _, err := streamFragments(c, fragments); err != nil {
		handleError(c, err, MsgChatFailed)
	}
}

// handleUpload ingests the multipart field "file". No size limit is enforced.
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		handleError(c, NewAppError(http.StatusBadRequest, MsgNoFile, err), "")
		return
	}

	f, err := header.Open()
	if err != nil {
		handleError(c, err, MsgUploadFailed)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		handleError(c, err, MsgUploadFailed)
		return
	}

	result, err := s.ingestor.Ingest(c.Request.Context(), header.Filename, data)
	if err != nil {
		handleError(c, err, MsgUploadFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": result.Content})
}

// handleTextSource ingests pasted text.
func (s *Server) handleTextSource(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, NewAppError(http.StatusBadRequest, MsgInvalidBody, err), "")
		return
	}

	result, err := s.ingestor.IngestText(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		handleError(c, err, MsgUploadFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": result.Content})
}

// handleURLSource fetches and ingests a web page.
func (s *Server) handleURLSource(c *gin.Context) {
	var req struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, NewAppError(http.StatusBadRequest, MsgInvalidBody, err), "")
		return
	}

	result, err := s.ingestor.IngestURL(c.Request.Context(), req.URL, req.Title)
	if err != nil {
		handleError(c, err, MsgUploadFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": result.Content})
}

// handleListSources returns the catalog, newest first.
func (s *Server) handleListSources(c *gin.Context) {
	if s.sources == nil {
		handleError(c, NewAppError(http.StatusNotFound, MsgCatalogDisabled, nil), "")
		return
	}

	sources, err := s.sources.List(c.Request.Context())
	if err != nil {
		handleError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// handlePersonas returns the persona keys accepted by /api/chat-stream.
func (s *Server) handlePersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": s.personas.Keys()})
}

func handleError(c *gin.Context, err error, fallback string) {
	appErr := MapError(err, fallback)
	if appErr.Code >= http.StatusInternalServerError {
		log.Printf("[Server] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
