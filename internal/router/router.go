package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/handler"
	"github.com/stemsi/exproctor-backend/internal/middleware"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/observability"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Exam          *handler.ExamHandler
	Media         *handler.MediaHandler
	WS            *handler.WSHandler
	Monitor       *handler.MonitorHandler
	Dashboard     *handler.DashboardHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweep.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	if cfg.MetricsEnabled {
		router.Use(observability.Middleware())
		router.GET("/metrics", observability.Handler())
	}
	router.Use(middleware.Brotli())

	// Uploaded media is immutable under its random name.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimitPerMinute, time.Minute)

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/register", authLimiter.Middleware(), handlers.Auth.RegisterStudent)
		auth.POST("/student/login", authLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/lobby", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/exams/:exam_id/attempt", handlers.StudentPortal.BeginAttempt)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentPortal.SubmitAttempt)
		studentAPI.GET("/exams/:exam_id/result", handlers.StudentPortal.GetResult)
		studentAPI.POST("/exams/:exam_id/questions/:question_id/video", handlers.StudentPortal.UploadVideoResponse)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentPortal.DownloadPaper)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/exams/:exam_id/proctor", handlers.WS.ProctorStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/dashboard",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Dashboard.GetDashboardData,
		)

		adminAPI.POST("/media/upload",
			middleware.RequirePermission(model.PermissionMediaUpload),
			handlers.Media.UploadMedia,
		)

		// Student approval
		adminAPI.GET("/students",
			middleware.RequirePermission(model.PermissionStudentsRead),
			handlers.StudentMgmt.ListStudents,
		)
		adminAPI.PUT("/students/:id/status",
			middleware.RequirePermission(model.PermissionStudentsApprove),
			handlers.StudentMgmt.ReviewStudent,
		)
		adminAPI.POST("/students/:id/reset-session",
			middleware.RequirePermission(model.PermissionStudentsResetSession),
			handlers.StudentMgmt.ResetStudentSession,
		)

		// Exams
		adminAPI.GET("/exams",
			middleware.RequirePermission(model.PermissionExamsRead),
			handlers.Exam.ListExams,
		)
		adminAPI.POST("/exams",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.CreateExam,
		)
		adminAPI.GET("/exams/:exam_id",
			middleware.RequirePermission(model.PermissionExamsRead),
			handlers.Exam.GetExam,
		)
		adminAPI.DELETE("/exams/:exam_id",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.DeleteExam,
		)
		adminAPI.PUT("/exams/:exam_id/score-visibility",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.SetScoreVisibility,
		)
		adminAPI.POST("/exams/:exam_id/paper",
			middleware.RequireAnyPermission(model.PermissionExamsWrite, model.PermissionMediaUpload),
			handlers.Exam.UploadPaper,
		)

		// Reports
		adminAPI.GET("/exams/:exam_id/results",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Exam.GetExamResults,
		)
		adminAPI.GET("/exams/:exam_id/results/export",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Exam.ExportResults,
		)
		adminAPI.GET("/exams/:exam_id/proctor-logs",
			middleware.RequirePermission(model.PermissionReportsRead),
			handlers.Exam.GetProctorLogs,
		)
		adminAPI.GET("/exams/:exam_id/monitor",
			middleware.RequirePermission(model.PermissionProctorMonitor),
			handlers.Monitor.MonitorExamSSE,
		)
	}

	return router
}
