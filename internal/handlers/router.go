package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medjeex/exam-engine/internal/services"
	"github.com/medjeex/exam-engine/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	paperHandler   *PaperHandler
}

func NewHandlerManager(
	attemptService services.AttemptService,
	paperService services.PaperService,
	importService services.ImportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, logger),
		paperHandler:   NewPaperHandler(paperService, importService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-engine",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(UserContextMiddleware())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/answer", hm.attemptHandler.SaveAnswer)
			attempts.POST("/clear-answer", hm.attemptHandler.ClearAnswer)
			attempts.POST("/mark-for-review", hm.attemptHandler.MarkForReview)
			attempts.POST("/save-and-mark", hm.attemptHandler.SaveAndMark)
			attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/view", hm.attemptHandler.GetAttemptView)
		}

		series := v1.Group("/series")
		{
			series.GET("/:series_id/papers", hm.paperHandler.ListSeriesPapers)
		}

		papers := v1.Group("/papers")
		{
			papers.GET("/:paper_id/questions", hm.paperHandler.GetBlankSnapshot)
			papers.POST("/:paper_id/questions/import", hm.paperHandler.ImportQuestions)
		}
	}
}
