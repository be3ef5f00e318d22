package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/domain"
	"github.com/cxr-report-server/internal/service"
)

const defaultRecentLimit = 20

// tokenRequest is the credential payload for token issuance.
type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// predictionsRequest carries a prediction payload that skips the image
// stages of the pipeline. Predictions is kept raw so the loader performs
// all schema validation in one place.
type predictionsRequest struct {
	DataName    string          `json:"data_name" binding:"required"`
	Predictions json.RawMessage `json:"predictions" binding:"required"`
}

// verificationRequest is the body for a verification transition.
type verificationRequest struct {
	Status     domain.VerificationStatus `json:"status" binding:"required"`
	Reason     string                    `json:"reason"`
	VerifiedBy string                    `json:"verified_by"`
}

// handleIssueToken exchanges configured credentials for a signed bearer
// token.
func (s *Server) handleIssueToken(c *gin.Context) {
	if !s.tokens.Enabled() {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "authentication is not configured", "")
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "username and password are required", err.Error())
		return
	}

	token, expiresAt, err := s.tokens.Issue(req.Username, req.Password)
	if err != nil {
		s.respondError(c, http.StatusUnauthorized, domain.ErrCodeAuthentication, "invalid credentials", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}

// handleGenerateFromImage accepts a multipart image upload and runs the
// full pipeline. The save_case form flag additionally records a case for
// later verification.
func (s *Server) handleGenerateFromImage(c *gin.Context) {
	filename, content, ok := s.readUpload(c)
	if !ok {
		return
	}

	if err := service.ValidateImageUpload(filename, content, s.config.Upload); err != nil {
		s.respondPipelineError(c, err)
		return
	}

	saveCase, _ := strconv.ParseBool(c.PostForm("save_case"))

	result, err := s.pipeline.GenerateFromImage(c.Request.Context(), content, filename, saveCase)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGenerateFromPredictions runs the pipeline from an existing
// prediction payload, skipping the inference services.
func (s *Server) handleGenerateFromPredictions(c *gin.Context) {
	var req predictionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "data_name and predictions are required", err.Error())
		return
	}

	result, err := s.pipeline.GenerateFromPredictions(c.Request.Context(), string(req.Predictions), req.DataName)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// featuresRequest carries a pre-extracted feature vector for the
// prediction-onwards pipeline.
type featuresRequest struct {
	DataName string    `json:"data_name" binding:"required"`
	Features []float64 `json:"features" binding:"required"`
}

// handleGenerateFromFeatures runs the pipeline from an existing feature
// vector, skipping the image upload and extraction stage.
func (s *Server) handleGenerateFromFeatures(c *gin.Context) {
	var req featuresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "data_name and features are required", err.Error())
		return
	}

	result, err := s.pipeline.GenerateFromFeatures(c.Request.Context(), req.Features, req.DataName)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGenerateFromLegacyCSV accepts the older prediction export together
// with its feature description CSV: the descriptions supply the item names
// before the payload enters the standard pipeline.
func (s *Server) handleGenerateFromLegacyCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("description")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "a description CSV upload is required", err.Error())
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "description CSV could not be opened", err.Error())
		return
	}
	defer file.Close()
	descriptionCSV, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "description CSV could not be read", err.Error())
		return
	}

	predictions := c.PostForm("predictions")
	dataName := c.PostForm("data_name")
	if predictions == "" || dataName == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "predictions and data_name form fields are required", "")
		return
	}

	result, err := s.pipeline.GenerateFromLegacy(c.Request.Context(), predictions, descriptionCSV, dataName)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleExtractFeatures runs only the feature-extraction stage and returns
// the raw vector, for callers that post-process features themselves.
func (s *Server) handleExtractFeatures(c *gin.Context) {
	filename, content, ok := s.readUpload(c)
	if !ok {
		return
	}

	if err := service.ValidateImageUpload(filename, content, s.config.Upload); err != nil {
		s.respondPipelineError(c, err)
		return
	}

	features, err := s.extractor.ExtractFeatures(c.Request.Context(), content, filename)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data_name": filename,
		"features":  features,
	})
}

// handleRecentReports returns the most recent reports from the master
// index, newest first.
func (s *Server) handleRecentReports(c *gin.Context) {
	reports, err := s.reports.GetRecent(s.limitParam(c))
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// handleRecentCases lists case summaries, newest first.
func (s *Server) handleRecentCases(c *gin.Context) {
	cases, err := s.cases.ListRecent(s.limitParam(c))
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}
	if cases == nil {
		cases = []domain.CaseSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// handleGetCase returns one full case record.
func (s *Server) handleGetCase(c *gin.Context) {
	caseRecord, err := s.cases.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "case not found", "")
			return
		}
		s.respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseRecord)
}

// handleSetVerification applies a verification transition to a case.
// Pending is not a valid target: a reviewed case stays reviewed.
func (s *Server) handleSetVerification(c *gin.Context) {
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "status is required", err.Error())
		return
	}

	if !domain.ValidStatus(req.Status) || req.Status == domain.VerificationPending {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"status must be 'verified' or 'flagged'", "")
		return
	}
	if req.Status == domain.VerificationFlagged && req.Reason == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"flagging a case requires a reason", "")
		return
	}

	verifiedBy := req.VerifiedBy
	if verifiedBy == "" {
		verifiedBy = c.GetString("subject")
	}

	caseID := c.Param("id")
	ok, err := s.cases.SetVerification(caseID, req.Status, req.Reason, verifiedBy)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}
	if !ok {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "case not found", "")
		return
	}

	caseRecord, err := s.cases.Get(caseID)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, caseRecord)
}

// readUpload pulls the image file out of the multipart form. It accepts
// the field name "image" and falls back to "file" for compatibility with
// the inference service convention.
func (s *Server) readUpload(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		fileHeader, err = c.FormFile("file")
	}
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "an image file upload is required", err.Error())
		return "", nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "uploaded file could not be opened", err.Error())
		return "", nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "uploaded file could not be read", err.Error())
		return "", nil, false
	}

	return fileHeader.Filename, content, true
}

// limitParam parses the optional ?limit query parameter.
func (s *Server) limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecentLimit)))
	if err != nil || limit <= 0 {
		return defaultRecentLimit
	}
	return limit
}

// respondPipelineError maps domain error types onto HTTP statuses.
func (s *Server) respondPipelineError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	var schemaErr *domain.SchemaError
	var upstreamErr *domain.UpstreamError
	var persistenceErr *domain.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, validationErr.Message, "")
	case errors.As(err, &schemaErr):
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeSchema, schemaErr.Error(), "")
	case errors.As(err, &upstreamErr):
		s.respondError(c, http.StatusBadGateway, domain.ErrCodeUpstream, err.Error(), "")
	case errors.As(err, &persistenceErr):
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodePersistence, err.Error(), "")
	default:
		s.logger.WithError(err).Error("Unhandled request failure")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeInternal, "internal server error", "")
	}
}

// respondError writes the standardized error body.
func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	requestID, _ := c.Get("correlation_id")
	id, _ := requestID.(string)

	s.logger.WithFields(logrus.Fields{
		"status":     status,
		"code":       code,
		"request_id": id,
		"path":       c.FullPath(),
	}).Warn(message)

	c.AbortWithStatusJSON(status, domain.APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: id,
	})
}
