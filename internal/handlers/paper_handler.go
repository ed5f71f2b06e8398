package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medjeex/exam-engine/internal/services"
	"github.com/medjeex/exam-engine/internal/utils"
)

// PaperHandler exposes the test paper catalog views and question
// import.
type PaperHandler struct {
	BaseHandler
	paperService  services.PaperService
	importService services.ImportService
}

func NewPaperHandler(paperService services.PaperService, importService services.ImportService, logger utils.Logger) *PaperHandler {
	return &PaperHandler{
		BaseHandler:   NewBaseHandler(logger),
		paperService:  paperService,
		importService: importService,
	}
}

// ListSeriesPapers returns a series' papers with per-user status tags.
// GET /api/v1/series/:series_id/papers
func (h *PaperHandler) ListSeriesPapers(c *gin.Context) {
	seriesID := ParseStringIDParam(c, "series_id")
	if seriesID == "" {
		return
	}

	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	resp, err := h.paperService.ListSeriesPapers(c.Request.Context(), &services.SeriesPapersRequest{
		UserID:       userID,
		TestSeriesID: seriesID,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Series papers",
		Data:    resp,
	})
}

// GetBlankSnapshot returns the paper's questions grouped by subject
// with blank answer state, shown before an attempt begins.
// GET /api/v1/papers/:paper_id/questions
func (h *PaperHandler) GetBlankSnapshot(c *gin.Context) {
	paperID := ParseStringIDParam(c, "paper_id")
	if paperID == "" {
		return
	}

	subjects, err := h.paperService.GetBlankSnapshot(c.Request.Context(), paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Paper questions",
		Data:    subjects,
	})
}

// ImportQuestions loads a paper's question bank from an uploaded CSV
// or Excel file.
// POST /api/v1/papers/:paper_id/questions/import
func (h *PaperHandler) ImportQuestions(c *gin.Context) {
	paperID := ParseStringIDParam(c, "paper_id")
	if paperID == "" {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing upload file",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Cannot open upload file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions",
		"test_paper_id", paperID,
		"filename", fileHeader.Filename)

	result, err := h.importService.ImportQuestionsFromFile(c.Request.Context(), file, fileHeader.Filename, paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Import completed",
		Data:    result,
	})
}
