package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/services"
	"github.com/medjeex/exam-engine/internal/utils"
)

// AttemptHandler exposes the attempt session lifecycle over HTTP.
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt opens a new attempt session for the authenticated user.
// POST /api/v1/attempts/start
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	req.UserID = userID

	resp, err := h.attemptService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Attempt started",
		Data:    resp,
	})
}

// SaveAnswer records the selected answer for one question.
// POST /api/v1/attempts/answer
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	var req services.SaveAnswerRequest
	if !h.bindMutation(c, &req, &req.AttemptRef) {
		return
	}
	if err := h.attemptService.SaveAnswer(c.Request.Context(), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// ClearAnswer resets one question back to unanswered.
// POST /api/v1/attempts/clear-answer
func (h *AttemptHandler) ClearAnswer(c *gin.Context) {
	var req services.ClearAnswerRequest
	if !h.bindMutation(c, &req, &req.AttemptRef) {
		return
	}
	if err := h.attemptService.ClearAnswer(c.Request.Context(), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer cleared"})
}

// MarkForReview toggles the review flag for one question.
// POST /api/v1/attempts/mark-for-review
func (h *AttemptHandler) MarkForReview(c *gin.Context) {
	var req services.MarkForReviewRequest
	if !h.bindMutation(c, &req, &req.AttemptRef) {
		return
	}
	if err := h.attemptService.MarkForReview(c.Request.Context(), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Review mark updated"})
}

// SaveAndMark stores an answer and the review flag in one update.
// POST /api/v1/attempts/save-and-mark
func (h *AttemptHandler) SaveAndMark(c *gin.Context) {
	var req services.SaveAndMarkRequest
	if !h.bindMutation(c, &req, &req.AttemptRef) {
		return
	}
	if err := h.attemptService.SaveAndMark(c.Request.Context(), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved and marked"})
}

// SubmitAttempt finalizes the open attempt. Submitting a session the
// deadline already finalized is reported as success, not an error.
// POST /api/v1/attempts/submit
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	var ref services.AttemptRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	ref.UserID = userID

	resp, err := h.attemptService.Submit(c.Request.Context(), ref.Key())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt submitted",
		Data:    resp,
	})
}

// GetAttemptView returns the open attempt with per-question state
// overlaid, for resuming an interrupted session.
// GET /api/v1/attempts/view?test_series_id=...&test_paper_id=...
func (h *AttemptHandler) GetAttemptView(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	key := models.AttemptKey{
		UserID:       userID,
		TestSeriesID: c.Query("test_series_id"),
		TestPaperID:  c.Query("test_paper_id"),
	}

	resp, err := h.attemptService.GetAttemptView(c.Request.Context(), key)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt view",
		Data:    resp,
	})
}

// bindMutation binds a per-question mutation body and stamps the
// authenticated user onto its attempt reference.
func (h *AttemptHandler) bindMutation(c *gin.Context, req interface{}, ref *services.AttemptRef) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}

	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return false
	}
	ref.UserID = userID
	return true
}
