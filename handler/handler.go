// Package handler exposes the use cases over HTTP with gin. The same engine
// serves a long-running server and API Gateway Lambda invocations.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference-assistant/internal/domain"
	"conference-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type DocumentUseCase interface {
	UploadDocument(ctx context.Context, filename string, r io.Reader) (string, error)
	DeleteDocument(ctx context.Context, id string) error
}

type QueryUseCase interface {
	Answer(ctx context.Context, in usecase.QueryInput) (string, error)
	SummarizeDocument(ctx context.Context, documentID, language string) (string, error)
}

type ConferenceUseCase interface {
	Start(ctx context.Context, parentLanguage string) (string, error)
	RecordAudio(ctx context.Context, id, filename string, r io.Reader) (usecase.RecordOutput, error)
	SummaryIn(ctx context.Context, id, language string) (string, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]domain.ConferenceInfo, error)
	RecordingPath(name string) (string, error)
}

type Handler struct {
	docs        DocumentUseCase
	queries     QueryUseCase
	conferences ConferenceUseCase
	engine      *gin.Engine
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type queryRequest struct {
	DocumentID   string `json:"document_id" form:"document_id"`
	ConferenceID string `json:"conference_id" form:"conference_id"`
	Question     string `json:"question" form:"question"`
	Language     string `json:"language" form:"language"`
}

type startRequest struct {
	ParentLanguage string `json:"parent_language" form:"parent_language"`
}

type recordResponse struct {
	Message   string `json:"message"`
	Text      string `json:"text"`
	Recording string `json:"recording"`
}

func NewHandler(docs DocumentUseCase, queries QueryUseCase, conferences ConferenceUseCase) (*Handler, error) {
	if docs == nil {
		return nil, errors.New("handler: document use case must not be nil")
	}
	if queries == nil {
		return nil, errors.New("handler: query use case must not be nil")
	}
	if conferences == nil {
		return nil, errors.New("handler: conference use case must not be nil")
	}
	h := &Handler{docs: docs, queries: queries, conferences: conferences}
	h.engine = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), correlation(), requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/documents", h.uploadDocument)
	r.POST("/upload", h.uploadDocument)
	r.DELETE("/documents/:id", h.deleteDocument)
	r.POST("/query", h.query)
	r.GET("/summary/:id", h.documentSummary)

	r.POST("/conference/start", h.startConference)
	r.POST("/conference/record", h.recordAudio)
	r.GET("/conference/:id/summary", h.conferenceSummary)
	r.GET("/conferences", h.listConferences)
	r.DELETE("/conferences/:id", h.deleteConference)
	r.GET("/recordings/:filename", h.recording)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"})
	})
	return r
}

// correlation echoes X-Correlation-Id, generating one when absent, and
// carries it into the request context.
func correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(correlationHeader, id)
		c.Request = c.Request.WithContext(usecase.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", usecase.CorrelationID(c.Request.Context()),
		)
	}
}

func (h *Handler) uploadDocument(c *gin.Context) {
	name, f, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer f.Close()

	id, err := h.docs.UploadDocument(c.Request.Context(), name, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id})
}

func (h *Handler) deleteDocument(c *gin.Context) {
	if err := h.docs.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err})
		return
	}
	in := usecase.QueryInput{
		ScopeKey: domain.MetaDocumentID,
		ScopeID:  req.DocumentID,
		Question: req.Question,
		Language: req.Language,
	}
	if in.ScopeID == "" && req.ConferenceID != "" {
		in.ScopeKey = domain.MetaConferenceID
		in.ScopeID = req.ConferenceID
	}
	answer, err := h.queries.Answer(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *Handler) documentSummary(c *gin.Context) {
	summary, err := h.queries.SummarizeDocument(c.Request.Context(), c.Param("id"), c.Query("language"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *Handler) startConference(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			writeError(c, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err})
			return
		}
	}
	if req.ParentLanguage == "" {
		req.ParentLanguage = c.Query("language")
	}
	id, err := h.conferences.Start(c.Request.Context(), req.ParentLanguage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conference started successfully", "conference_id": id})
}

func (h *Handler) recordAudio(c *gin.Context) {
	name, f, ok := formFile(c, "audio")
	if !ok {
		return
	}
	defer f.Close()

	id := strings.TrimSpace(c.PostForm("conference_id"))
	if id == "" {
		writeError(c, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_conference_id"})
		return
	}
	out, err := h.conferences.RecordAudio(c.Request.Context(), id, name, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordResponse{Message: "Audio processed successfully", Text: out.Text, Recording: out.Recording})
}

func (h *Handler) conferenceSummary(c *gin.Context) {
	summary, err := h.conferences.SummaryIn(c.Request.Context(), c.Param("id"), c.Query("language"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *Handler) listConferences(c *gin.Context) {
	list, err := h.conferences.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) deleteConference(c *gin.Context) {
	if err := h.conferences.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) recording(c *gin.Context) {
	path, err := h.conferences.RecordingPath(c.Param("filename"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.File(path)
}

func formFile(c *gin.Context, field string) (string, multipart.File, bool) {
	fh, err := c.FormFile(field)
	if err != nil || fh.Filename == "" {
		writeError(c, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_" + field, Err: err})
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, &usecase.Error{Code: usecase.ErrorInternal, Reason: "open_upload_error", Err: err})
		return "", nil, false
	}
	return fh.Filename, f, true
}

func writeError(c *gin.Context, err error) {
	status, code, reason := mapError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"err", err,
			"code", code,
			"correlation_id", usecase.CorrelationID(c.Request.Context()),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Reason: reason})
}

func mapError(err error) (int, string, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ""
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorUnsupportedFormat:
		return http.StatusUnsupportedMediaType, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorEmptyExtraction:
		return http.StatusUnprocessableEntity, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorNotFound:
		return http.StatusNotFound, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, string(ucErr.Code), ucErr.Reason
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ucErr.Reason
	}
}
