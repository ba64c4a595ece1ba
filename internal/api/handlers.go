package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ory/herodot"

	"traitor/internal/apperr"
	"traitor/internal/models"
	"traitor/internal/service/assistant"
	"traitor/internal/session"
)

const (
	indexMessage   = "chatgpt nice brother wojak!"
	noTokenMessage = "No token found."
)

// FileFetcher downloads uploaded files from object storage.
type FileFetcher interface {
	Fetch(ctx context.Context, sessionToken, fileName string) ([]byte, error)
}

// DocumentExtractor turns downloaded bytes into metadata and paragraphs.
type DocumentExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (*models.Extraction, error)
}

// Assistant runs the LLM analyses.
type Assistant interface {
	AskGPT(ctx context.Context, prompt string) (string, error)
	ReversePrompt(ctx context.Context, text string) (*assistant.ReverseResult, error)
	AnalyzeMetadata(ctx context.Context, meta models.Metadata) string
}

// Handler wires HTTP routes to storage, extraction and the assistant.
type Handler struct {
	sessions    *session.Manager
	files       FileFetcher
	extractor   DocumentExtractor
	assistant   Assistant
	corsOrigins []string
	writer      *herodot.JSONWriter
}

// NewHandler constructs a Handler instance.
func NewHandler(sessions *session.Manager, files FileFetcher, extractor DocumentExtractor, svc Assistant, corsOrigins []string) *Handler {
	return &Handler{
		sessions:    sessions,
		files:       files,
		extractor:   extractor,
		assistant:   svc,
		corsOrigins: corsOrigins,
		writer:      herodot.NewJSONWriter(nil),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.corsOrigins))

	// these two must not mint a session token
	router.GET("/get-token", h.getToken)
	router.GET("/healthz", h.healthz)

	tracked := router.Group("/", h.sessions.Middleware())
	tracked.GET("/", h.index)
	tracked.GET("/set-token", h.setToken)
	tracked.POST("/file-uploaded", h.fileUploaded)
	tracked.POST("/askgpt", h.askGPT)
	tracked.POST("/reverseprompt", h.reversePrompt)
	tracked.POST("/documentscan", h.documentScan)
	tracked.POST("/extract-text", h.extractText)
}

func (h *Handler) index(c *gin.Context) {
	c.String(http.StatusOK, indexMessage)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Session token debug endpoints
func (h *Handler) setToken(c *gin.Context) {
	token, err := h.sessions.Regenerate(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.String(http.StatusOK, "Token set: "+token)
}

func (h *Handler) getToken(c *gin.Context) {
	token, ok, err := h.sessions.Peek(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok {
		c.String(http.StatusOK, noTokenMessage)
		return
	}
	c.String(http.StatusOK, token)
}

type fileUploadedRequest struct {
	FileName  string `json:"fileName"`
	SessionID string `json:"sessionID"`
}

// fileUploaded is kept for older clients; /documentscan does the work.
func (h *Handler) fileUploaded(c *gin.Context) {
	var req fileUploadedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LLM analyses
type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) askGPT(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	response, err := h.assistant.AskGPT(c.Request.Context(), req.Prompt)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"testName": "AskGPT",
		"success":  true,
		"response": response,
	})
}

func (h *Handler) reversePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	res, err := h.assistant.ReversePrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"testName":        "ReversePrompt",
		"success":         true,
		"original_prompt": req.Prompt,
		"reversed_prompt": res.ReversedPrompt,
		"description":     res.Description,
	})
}

// Document pipelines
type documentRequest struct {
	SessionToken string `json:"session_token"`
	FileName     string `json:"file_name"`
}

func (h *Handler) documentScan(c *gin.Context) {
	extraction, ok := h.loadDocument(c)
	if !ok {
		return
	}
	analysis := h.assistant.AnalyzeMetadata(c.Request.Context(), extraction.Metadata)
	c.JSON(http.StatusOK, gin.H{
		"metadata": extraction.Metadata,
		"text":     extraction.Text(),
		"analysis": analysis,
	})
}

func (h *Handler) extractText(c *gin.Context) {
	extraction, ok := h.loadDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": extraction.Text()})
}

// loadDocument fetches and parses the requested file, writing the error
// response itself when it fails.
func (h *Handler) loadDocument(c *gin.Context) (*models.Extraction, bool) {
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return nil, false
	}
	ctx := c.Request.Context()
	data, err := h.files.Fetch(ctx, req.SessionToken, req.FileName)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	extraction, err := h.extractor.Extract(ctx, req.FileName, data)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return extraction, true
}

// writeAnalysisError reports completion failures in the body with a 200, the
// way clients of /askgpt and /reverseprompt expect.
func (h *Handler) writeAnalysisError(c *gin.Context, err error) {
	if !apperr.Is(err, apperr.Adapter) {
		h.writeError(c, err)
		return
	}
	log.Printf("completion failed on %s: %v", c.FullPath(), err)
	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func (h *Handler) badRequest(c *gin.Context, reason string) {
	h.writer.WriteError(c.Writer, c.Request, herodot.ErrBadRequest.WithReason(reason))
	c.Abort()
}

// writeError maps the error kind to a status code and writes a herodot
// error envelope.
func (h *Handler) writeError(c *gin.Context, err error) {
	var herr *herodot.DefaultError
	switch apperr.KindOf(err) {
	case apperr.Validation:
		herr = herodot.ErrBadRequest.WithReason(err.Error())
	case apperr.StorageNotFound:
		herr = herodot.ErrNotFound.WithReason("The requested file does not exist")
	case apperr.StorageUnavailable:
		herr = &herodot.DefaultError{
			CodeField:   http.StatusBadGateway,
			StatusField: http.StatusText(http.StatusBadGateway),
			ErrorField:  "The storage backend could not be reached",
			ReasonField: "Failed to download file",
		}
	case apperr.Parse:
		herr = &herodot.DefaultError{
			CodeField:   http.StatusUnprocessableEntity,
			StatusField: http.StatusText(http.StatusUnprocessableEntity),
			ErrorField:  "The file is not a valid Word document",
			ReasonField: err.Error(),
		}
	default:
		herr = herodot.ErrInternalServerError.WithReason("Failed to process request")
	}
	if herr.CodeField >= http.StatusInternalServerError {
		log.Printf("request %s failed: %v", c.Request.URL.Path, err)
	}
	h.writer.WriteError(c.Writer, c.Request, herr)
	c.Abort()
}
