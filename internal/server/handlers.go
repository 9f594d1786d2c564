package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/ats-analyzer/internal/ai"
	"github.com/spigell/ats-analyzer/internal/analyzer"
	"github.com/spigell/ats-analyzer/internal/extract"
	"github.com/spigell/ats-analyzer/internal/logger"
)

const (
	uploadField         = "resume"
	jobDescriptionField = "jobDescription"

	// DefaultMaxUploadBytes caps the resume upload size.
	DefaultMaxUploadBytes int64 = 5 << 20
	// multipartOverhead leaves room for form fields and boundaries on top of the file.
	multipartOverhead int64 = 1 << 20

	probeTimeout     = 15 * time.Second
	probeConcurrency = 4
)

// Analyzer runs a single resume analysis.
type Analyzer interface {
	Analyze(ctx context.Context, resumeText, jobDescription string) (*analyzer.Verdict, error)
}

// Handler serves the HTTP surface of the analyzer.
type Handler struct {
	analyzer   Analyzer
	prober     ai.ModelProber
	candidates []string
	maxUpload  int64
	logger     *zap.Logger
}

type HandlerDeps struct {
	Analyzer        Analyzer
	Prober          ai.ModelProber
	CandidateModels []string
	MaxUploadBytes  int64
	Logger          *zap.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	return &Handler{
		analyzer:   deps.Analyzer,
		prober:     deps.Prober,
		candidates: deps.CandidateModels,
		maxUpload:  maxUpload,
		logger:     logger.WithFields(deps.Logger),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.liveness)
	r.POST("/analyze-text", h.analyzeText)
	r.POST("/analyze", h.analyzeUpload)
	r.GET("/check-model", h.checkModel)
	r.GET("/check-models", h.checkModels)
	r.GET("/list-models", h.listModels)
}

func (h *Handler) liveness(c *gin.Context) {
	c.String(http.StatusOK, "ATS analyzer is running")
}

type analyzeTextRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

func (h *Handler) analyzeText(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "request body must be a JSON object with resumeText and jobDescription")
		return
	}

	h.respondAnalysis(c, req.ResumeText, req.JobDescription)
}

func (h *Handler) analyzeUpload(c *gin.Context) {
	log := h.requestLogger(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)

	file, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusBadRequest, h.tooLargeMessage())
			return
		}
		respondError(c, http.StatusBadRequest, "resume file is required")
		return
	}

	jobDescription := c.PostForm(jobDescriptionField)
	if strings.TrimSpace(jobDescription) == "" {
		respondError(c, http.StatusBadRequest, "jobDescription is required")
		return
	}

	if file.Size > h.maxUpload {
		respondError(c, http.StatusBadRequest, h.tooLargeMessage())
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		log.Warn("reading uploaded resume", zap.Error(err))
		respondError(c, http.StatusBadRequest, "resume file could not be read")
		return
	}

	declared := file.Header.Get("Content-Type")
	mime, ok := extract.Supported(data, declared, file.Filename)
	if !ok {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("unsupported resume file type %q: expected PDF, DOCX or plain text", mime))
		return
	}

	text, err := extract.Text(c.Request.Context(), data, declared, file.Filename)
	if err != nil {
		log.Warn("extracting resume text",
			zap.String("file_name", file.Filename),
			zap.String("mime", mime),
			zap.Error(err),
		)
		text = ""
	}

	if strings.TrimSpace(text) == "" {
		respondError(c, http.StatusBadRequest, "no text could be extracted from the resume file")
		return
	}

	log.Debug("resume text extracted",
		zap.String("file_name", file.Filename),
		zap.String("mime", mime),
		zap.Int64("size", file.Size),
		zap.Int("text_length", len(text)),
	)

	h.respondAnalysis(c, text, jobDescription)
}

func (h *Handler) respondAnalysis(c *gin.Context, resumeText, jobDescription string) {
	verdict, err := h.analyzer.Analyze(c.Request.Context(), resumeText, jobDescription)
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidRequest) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.requestLogger(c).Error("analysis failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "analysis failed")
		return
	}

	status := http.StatusOK
	if verdict.Degraded {
		status = http.StatusInternalServerError
	}
	c.JSON(status, verdict)
}

type modelCheck struct {
	Model     string        `json:"model"`
	Available bool          `json:"available"`
	Info      *ai.ModelInfo `json:"info,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (h *Handler) checkModel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	check := h.probe(ctx, strings.TrimSpace(c.Query("model")))
	if !check.Available {
		c.JSON(http.StatusInternalServerError, check)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (h *Handler) checkModels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	candidates := h.candidates
	if len(candidates) == 0 {
		candidates = []string{h.prober.Model()}
	}

	checks := make([]modelCheck, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, name := range candidates {
		g.Go(func() error {
			checks[i] = h.probe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{
		"configured": h.prober.Model(),
		"models":     checks,
	})
}

func (h *Handler) listModels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	models, err := h.prober.ListModels(ctx)
	if err != nil {
		h.requestLogger(c).Warn("listing models", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(models),
		"models": models,
	})
}

// probe reports a failed lookup in the result rather than as an error.
func (h *Handler) probe(ctx context.Context, name string) modelCheck {
	if name == "" {
		name = h.prober.Model()
	}

	info, err := h.prober.CheckModel(ctx, name)
	if err != nil {
		h.logger.Debug("model check failed", zap.String(logger.FieldModel, name), zap.Error(err))
		return modelCheck{Model: name, Error: err.Error()}
	}
	return modelCheck{Model: name, Available: true, Info: info}
}

func (h *Handler) requestLogger(c *gin.Context) *zap.Logger {
	return logger.WithRequest(h.logger, RequestIDFromContext(c), c.FullPath())
}

func (h *Handler) tooLargeMessage() string {
	return "resume file exceeds the " + formatSize(h.maxUpload) + " limit"
}

// formatSize prints whole mebibytes as MB and anything else in bytes.
func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
