package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

// HealthChecker is satisfied by repositories.RepositoryManager
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HandlerManager struct {
	assessmentHandler   *AssessmentHandler
	attemptHandler      *AttemptHandler
	integrityHandler    *IntegrityHandler
	questionBankHandler *QuestionBankHandler
	authMiddleware      *CasdoorAuthMiddleware
	health              HealthChecker
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	verifier TokenVerifier,
	health HealthChecker,
	allowedOrigins []string,
) *HandlerManager {
	return &HandlerManager{
		assessmentHandler:   NewAssessmentHandler(serviceManager.Assessment(), serviceManager.Delivery(), serviceManager.Report(), logger),
		attemptHandler:      NewAttemptHandler(serviceManager.Attempt(), serviceManager.Integrity(), logger),
		integrityHandler:    NewIntegrityHandler(serviceManager.Integrity(), logger, allowedOrigins),
		questionBankHandler: NewQuestionBankHandler(serviceManager.QuestionBank(), logger),
		authMiddleware:      NewCasdoorAuthMiddleware(verifier),
		health:              health,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			// Authoring - Teachers and Admins only
			assessments.POST("", staff, hm.assessmentHandler.CreateAssessment)
			assessments.GET("", staff, hm.assessmentHandler.ListAssessments)
			assessments.GET("/:id", staff, hm.assessmentHandler.GetAssessment)
			assessments.PUT("/:id", staff, hm.assessmentHandler.UpdateAssessment)
			assessments.DELETE("/:id", staff, hm.assessmentHandler.DeleteAssessment)
			assessments.POST("/:id/publish", staff, hm.assessmentHandler.PublishAssessment)
			assessments.POST("/:id/unpublish", staff, hm.assessmentHandler.UnpublishAssessment)
			assessments.POST("/:id/archive", staff, hm.assessmentHandler.ArchiveAssessment)

			// Reports - Teachers and Admins only
			assessments.GET("/:id/stats", staff, hm.assessmentHandler.GetAssessmentStats)
			assessments.GET("/:id/results/export", staff, hm.assessmentHandler.ExportResults)

			// Delivery - any authenticated user, checked per assessment
			assessments.GET("/:id/take", hm.assessmentHandler.TakeAssessment)
			assessments.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
			assessments.GET("/:id/attempts/me", hm.attemptHandler.ListMyAttempts)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/integrity/tab-switch", hm.attemptHandler.RecordTabSwitch)
		}

		questionBanks := v1.Group("/question-banks")
		questionBanks.Use(staff)
		{
			questionBanks.POST("", hm.questionBankHandler.CreateQuestionBank)
			questionBanks.GET("", hm.questionBankHandler.ListQuestionBanks)
			questionBanks.GET("/:id", hm.questionBankHandler.GetQuestionBank)
			questionBanks.PUT("/:id", hm.questionBankHandler.UpdateQuestionBank)
			questionBanks.DELETE("/:id", hm.questionBankHandler.DeleteQuestionBank)

			questionBanks.GET("/:id/questions", hm.questionBankHandler.GetBankQuestions)
			questionBanks.POST("/:id/questions", hm.questionBankHandler.AddQuestionsToBank)
			questionBanks.DELETE("/:id/questions/:question_id", hm.questionBankHandler.RemoveQuestionFromBank)
			questionBanks.POST("/:id/generate", hm.questionBankHandler.GenerateQuestions)
			questionBanks.POST("/:id/import/:assessment_id", hm.questionBankHandler.ImportIntoAssessment)
		}
	}

	ws := router.Group("/ws")
	ws.Use(hm.authMiddleware.AuthMiddleware())
	{
		ws.GET("/assessments/:id/integrity", hm.integrityHandler.WatchAssessment)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", hm.HealthCheck)
}

// HealthCheck reports database and cache reachability
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if hm.health != nil {
		if err := hm.health.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "assessment-engine",
				"error":   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "assessment-engine",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
