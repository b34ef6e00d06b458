package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/config"
	"github.com/stemsi/modexam-backend/internal/handler"
	"github.com/stemsi/modexam-backend/internal/metrics"
	"github.com/stemsi/modexam-backend/internal/middleware"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
	Question      *handler.QuestionHandler
	Test          *handler.TestHandler
	Assignment    *handler.AssignmentHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so every log line and response carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		SkipPaths: []string{"/metrics", "/ws/", "/api/v1/admin/system/status"},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Student Group (JWT + rate limit) ───────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(auth),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/dashboard", handlers.StudentPortal.GetDashboard)
		studentAPI.POST("/tests/:test_id/start", handlers.StudentPortal.StartTest)
		studentAPI.GET("/tests/:test_id/session", handlers.StudentPortal.GetSession)
		studentAPI.GET("/results/:uid", handlers.StudentPortal.GetResult)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth), limiter.Middleware())
	{
		ws.GET("/student/tests/:test_id/stream", handlers.WS.TestStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth), middleware.NoStore())
	{
		// Questions
		adminAPI.GET("/questions",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.ListQuestions,
		)
		adminAPI.POST("/questions",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.CreateQuestion,
		)
		adminAPI.GET("/questions/:id",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.GetQuestion,
		)

		// Modules
		adminAPI.GET("/modules",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.ListModules,
		)
		adminAPI.POST("/modules",
			middleware.RequirePermission(model.PermissionQuestionsWrite),
			handlers.Question.CreateModule,
		)
		adminAPI.GET("/modules/:id",
			middleware.RequirePermission(model.PermissionQuestionsRead),
			handlers.Question.GetModule,
		)

		// Tests
		adminAPI.GET("/tests",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Test.ListTests,
		)
		adminAPI.POST("/tests",
			middleware.RequirePermission(model.PermissionTestsWrite),
			handlers.Test.CreateTest,
		)
		adminAPI.GET("/tests/:id",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Test.GetTest,
		)
		adminAPI.PUT("/tests/:id",
			middleware.RequirePermission(model.PermissionTestsWrite),
			handlers.Test.UpdateTest,
		)
		adminAPI.DELETE("/tests/:id",
			middleware.RequirePermission(model.PermissionTestsWrite),
			handlers.Test.DeleteTest,
		)
		adminAPI.GET("/tests/:id/time-summary",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Test.GetTimeSummary,
		)

		adminAPI.GET("/tests/:id/monitor",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Monitor.MonitorTestSSE,
		)

		// Test composition steps
		steps := adminAPI.Group("/tests/:id/steps", middleware.RequirePermission(model.PermissionTestsWrite))
		{
			steps.POST("/module", handlers.Test.AppendModuleStep)
			steps.POST("/break", handlers.Test.AppendBreakStep)
			steps.POST("/move", handlers.Test.MoveStep)
			steps.DELETE("/:index", handlers.Test.RemoveStep)
			steps.PATCH("/:index/time", handlers.Test.SetStepTime)
		}

		// Students
		adminAPI.PUT("/students/:user_id/assignments/:test_id",
			middleware.RequirePermission(model.PermissionStudentsAssign),
			handlers.Assignment.SetAttempts,
		)
		adminAPI.GET("/students/:user_id/results",
			middleware.RequirePermission(model.PermissionResultsRead),
			handlers.Assignment.ListResults,
		)

		// System
		adminAPI.GET("/system/status",
			middleware.RequireAnyPermission(model.PermissionTestsRead, model.PermissionResultsRead),
			handlers.System.StatusSSE,
		)
	}

	return router
}
