package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/coursehub/coursehub-api/api/swagger"
	"github.com/coursehub/coursehub-api/internal/handler"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/payment"
	"github.com/coursehub/coursehub-api/internal/repository"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/cache"
	"github.com/coursehub/coursehub-api/pkg/config"
	"github.com/coursehub/coursehub-api/pkg/database"
	"github.com/coursehub/coursehub-api/pkg/export"
	"github.com/coursehub/coursehub-api/pkg/jobs"
	"github.com/coursehub/coursehub-api/pkg/logger"
	corsmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coursehub/coursehub-api/pkg/middleware/requestid"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

// @title CourseHub API
// @version 1.0.0
// @description Course marketplace REST API
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	uploadsStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("uploads storage init failed", "error", err)
	}
	certificateStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("certificate storage init failed", "error", err)
	}
	uploadsSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	certificateSigner := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	contentRepo := repository.NewContentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	testimonialRepo := repository.NewTestimonialRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "coursehub",
	})
	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		BufferSize: 256,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	userSvc := service.NewUserService(userRepo, notificationSvc, validate, logr)

	courseSvc := newCourseService(courseRepo, enrollmentRepo, cacheRepo, validate, logr)

	providerClient := payment.NewClient(payment.Config{
		BaseURL:        cfg.Payments.ProviderURL,
		APIKey:         cfg.Payments.ProviderKey,
		RequestTimeout: cfg.Payments.RequestTimeout,
	}, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, providerClient, courseRepo, notificationSvc, service.PaymentConfig{
		SuccessURL: cfg.Payments.SuccessURL,
		CancelURL:  cfg.Payments.CancelURL,
		Currency:   "USD",
	}, validate, logr)

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, paymentSvc, contentRepo, notificationSvc, cfg.Enrollments.DefaultRenewDays, validate, logr)
	contentSvc := service.NewContentService(contentRepo, courseRepo, enrollmentSvc, uploadsStore, uploadsSigner, service.UploadLimits{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, enrollmentSvc, uploadsStore, notificationSvc, validate, logr)
	quizSvc := service.NewQuizService(quizRepo, courseRepo, enrollmentSvc, notificationSvc, validate, logr)
	discussionSvc := service.NewDiscussionService(discussionRepo, courseRepo, enrollmentSvc, notificationSvc, validate, logr)
	certificateSvc := service.NewCertificateService(certificateRepo, enrollmentRepo, courseRepo, notificationSvc, export.NewCertificatePDF(), certificateStore, certificateSigner, cfg.Certificates.IssuerName, logr)
	testimonialSvc := service.NewTestimonialService(testimonialRepo, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, courseRepo, cacheSvc, logr)
	dashboardSvc := service.NewDashboardService(analyticsRepo, enrollmentRepo, quizRepo, notificationRepo, certificateRepo, metricsSvc, logr)
	reportSvc := service.NewReportService(enrollmentRepo, paymentRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	go sweepExpiredEnrollments(ctx, cfg.Enrollments.SweepInterval, enrollmentSvc, enrollmentRepo, metricsSvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", handler.NewMetricsHandler(metricsSvc).Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:          authSvc,
		authH:         handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		courses:       handler.NewCourseHandler(courseSvc),
		enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		contents:      handler.NewContentHandler(contentSvc),
		assignments:   handler.NewAssignmentHandler(assignmentSvc),
		quizzes:       handler.NewQuizHandler(quizSvc),
		discussions:   handler.NewDiscussionHandler(discussionSvc),
		payments:      handler.NewPaymentHandler(paymentSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		testimonials:  handler.NewTestimonialHandler(testimonialSvc),
		certificates:  handler.NewCertificateHandler(certificateSvc),
		dashboards:    handler.NewDashboardHandler(dashboardSvc),
		analytics:     handler.NewAnalyticsHandler(analyticsSvc),
		reports:       handler.NewReportHandler(reportSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// newCourseService keeps the typed-nil cache pitfall out of the wiring: a nil
// *repository.CacheRepository must become a nil interface.
func newCourseService(repo *repository.CourseRepository, enrollments *repository.EnrollmentRepository, cacheRepo *repository.CacheRepository, validate *validator.Validate, logr *zap.Logger) *service.CourseService {
	if cacheRepo == nil {
		return service.NewCourseService(repo, enrollments, nil, 10*time.Minute, validate, logr)
	}
	return service.NewCourseService(repo, enrollments, cacheRepo, 10*time.Minute, validate, logr)
}

func sweepExpiredEnrollments(ctx context.Context, interval time.Duration, enrollments *service.EnrollmentService, repo *repository.EnrollmentRepository, metrics *service.MetricsService, logr *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := enrollments.SweepExpired(ctx)
			if err != nil {
				logr.Sugar().Warnw("enrollment expiry sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				logr.Sugar().Infow("enrollment expiry sweep", "deactivated", swept)
			}
			if count, err := repo.CountActive(ctx); err == nil {
				metrics.SetActiveEnrollments(count)
			}
		}
	}
}

type routeDeps struct {
	auth          *service.AuthService
	authH         *handler.AuthHandler
	users         *handler.UserHandler
	courses       *handler.CourseHandler
	enrollments   *handler.EnrollmentHandler
	contents      *handler.ContentHandler
	assignments   *handler.AssignmentHandler
	quizzes       *handler.QuizHandler
	discussions   *handler.DiscussionHandler
	payments      *handler.PaymentHandler
	notifications *handler.NotificationHandler
	testimonials  *handler.TestimonialHandler
	certificates  *handler.CertificateHandler
	dashboards    *handler.DashboardHandler
	analytics     *handler.AnalyticsHandler
	reports       *handler.ReportHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	authRequired := middleware.JWT(d.auth)
	admin := middleware.RBAC("ADMIN")
	instructorOrAdmin := middleware.RBAC("INSTRUCTOR", "ADMIN")
	student := middleware.RBAC("STUDENT")

	api.POST("/auth/register", d.authH.Register)
	api.POST("/auth/login", d.authH.Login)
	api.POST("/auth/refresh", d.authH.Refresh)
	api.POST("/auth/logout", authRequired, d.authH.Logout)
	api.PUT("/auth/password", authRequired, d.authH.ChangePassword)

	api.GET("/users", authRequired, admin, d.users.List)
	api.GET("/users/:id", authRequired, middleware.RBAC("ADMIN", "SELF"), d.users.Get)
	api.PUT("/users/:id", authRequired, middleware.RBAC("ADMIN", "SELF"), d.users.UpdateProfile)
	api.PUT("/users/:id/approve", authRequired, admin, d.users.Approve)
	api.DELETE("/users/:id/approve", authRequired, admin, d.users.RevokeApproval)
	api.DELETE("/users/:id", authRequired, admin, d.users.Delete)

	api.GET("/courses", middleware.OptionalJWT(d.auth), d.courses.List)
	api.GET("/courses/:id", middleware.OptionalJWT(d.auth), d.courses.Get)
	api.POST("/courses", authRequired, instructorOrAdmin, d.courses.Create)
	api.PUT("/courses/:id", authRequired, instructorOrAdmin, d.courses.Update)
	api.DELETE("/courses/:id", authRequired, instructorOrAdmin, d.courses.Delete)
	api.POST("/courses/:id/rating", authRequired, student, d.courses.Rate)

	api.GET("/enrollments", authRequired, d.enrollments.List)
	api.GET("/enrollments/:id", authRequired, d.enrollments.Get)
	api.POST("/courses/:id/enroll", authRequired, student, d.enrollments.Enroll)
	api.PUT("/enrollments/:id/renew", authRequired, student, d.enrollments.Renew)
	api.DELETE("/enrollments/:id", authRequired, student, d.enrollments.Cancel)
	api.PUT("/courses/:id/progress", authRequired, student, d.enrollments.Progress)

	api.GET("/courses/:id/contents", authRequired, d.contents.List)
	api.POST("/courses/:id/contents", authRequired, instructorOrAdmin, d.contents.Create)
	api.PUT("/contents/:id", authRequired, instructorOrAdmin, d.contents.Update)
	api.DELETE("/contents/:id", authRequired, instructorOrAdmin, d.contents.Delete)
	api.GET("/contents/:id/download", authRequired, d.contents.SignedURL)
	api.GET("/downloads", d.contents.Download)
	api.GET("/courses/:id/lessons", authRequired, d.contents.ListLessons)
	api.POST("/courses/:id/lessons", authRequired, instructorOrAdmin, d.contents.CreateLesson)
	api.POST("/lessons/:id/complete", authRequired, student, d.contents.CompleteLesson)

	api.GET("/courses/:id/assignments", authRequired, d.assignments.List)
	api.POST("/courses/:id/assignments", authRequired, instructorOrAdmin, d.assignments.Create)
	api.POST("/assignments/:id/submissions", authRequired, student, d.assignments.Submit)
	api.GET("/assignments/:id/submissions", authRequired, d.assignments.ListSubmissions)
	api.PUT("/submissions/:id/grade", authRequired, instructorOrAdmin, d.assignments.Grade)

	api.GET("/courses/:id/quizzes", authRequired, d.quizzes.List)
	api.GET("/quizzes/:id", authRequired, d.quizzes.Get)
	api.POST("/courses/:id/quizzes", authRequired, instructorOrAdmin, d.quizzes.Create)
	api.PUT("/quizzes/:id", authRequired, instructorOrAdmin, d.quizzes.Update)
	api.POST("/quizzes/:id/questions", authRequired, instructorOrAdmin, d.quizzes.AddQuestion)
	api.PUT("/questions/:id", authRequired, instructorOrAdmin, d.quizzes.UpdateQuestion)
	api.DELETE("/questions/:id", authRequired, instructorOrAdmin, d.quizzes.DeleteQuestion)
	api.POST("/questions/:id/answers", authRequired, instructorOrAdmin, d.quizzes.AddAnswer)
	api.DELETE("/answers/:id", authRequired, instructorOrAdmin, d.quizzes.DeleteAnswer)
	api.GET("/quizzes/:id/attempts", authRequired, instructorOrAdmin, d.quizzes.ListAttempts)
	api.POST("/quizzes/:id/attempts", authRequired, student, d.quizzes.StartAttempt)
	api.PUT("/attempts/:id/submit", authRequired, student, d.quizzes.SubmitAttempt)
	api.DELETE("/quizzes/:id", authRequired, instructorOrAdmin, d.quizzes.Delete)

	api.GET("/courses/:id/discussions", authRequired, d.discussions.List)
	api.POST("/courses/:id/discussions", authRequired, d.discussions.Create)
	api.GET("/discussions/:id", authRequired, d.discussions.Get)
	api.PUT("/discussions/:id", authRequired, d.discussions.Update)
	api.POST("/discussions/:id/comments", authRequired, d.discussions.AddComment)
	api.PUT("/discussions/:id/comments/:commentId", authRequired, d.discussions.UpdateComment)
	api.PUT("/discussions/:id/comments/:commentId/solution", authRequired, d.discussions.MarkSolution)
	api.DELETE("/discussions/:id/comments/:commentId", authRequired, d.discussions.DeleteComment)
	api.DELETE("/discussions/:id", authRequired, d.discussions.Delete)

	api.POST("/courses/:id/checkout", authRequired, student, d.payments.Checkout)
	api.PUT("/payments/:id/confirm", authRequired, student, d.payments.Confirm)
	api.PUT("/payments/:id/cancel", authRequired, student, d.payments.Cancel)
	api.GET("/payments", authRequired, d.payments.List)

	api.GET("/notifications", authRequired, d.notifications.List)
	api.GET("/notifications/unread", authRequired, d.notifications.UnreadCount)
	api.PUT("/notifications/read", authRequired, d.notifications.MarkAllRead)
	api.PUT("/notifications/:id/read", authRequired, d.notifications.MarkRead)
	api.POST("/messages", authRequired, d.notifications.SendContactMessage)
	api.GET("/messages", authRequired, d.notifications.ListContactMessages)
	api.PUT("/messages/:id/read", authRequired, d.notifications.MarkMessageRead)

	api.GET("/testimonials", d.testimonials.ListApproved)
	api.POST("/testimonials", authRequired, d.testimonials.Create)
	api.GET("/testimonials/pending", authRequired, admin, d.testimonials.ListPending)
	api.PUT("/testimonials/:id/approve", authRequired, admin, d.testimonials.Approve)
	api.DELETE("/testimonials/:id", authRequired, d.testimonials.Delete)

	api.POST("/courses/:id/certificate", authRequired, student, d.certificates.Issue)
	api.GET("/certificates", authRequired, student, d.certificates.ListMine)
	api.GET("/certificates/verify/:code", d.certificates.Verify)
	api.PUT("/certificates/:id/verify", authRequired, instructorOrAdmin, d.certificates.MarkVerified)
	api.GET("/certificates/:id/download", authRequired, d.certificates.SignedURL)
	api.GET("/certificates/download", d.certificates.Download)

	api.GET("/dashboard/student", authRequired, student, d.dashboards.Student)
	api.GET("/dashboard/instructor", authRequired, middleware.RBAC("INSTRUCTOR"), d.dashboards.Instructor)
	api.GET("/dashboard/admin", authRequired, admin, d.dashboards.Admin)

	api.GET("/courses/:id/analytics", authRequired, instructorOrAdmin, d.analytics.Course)

	api.GET("/reports/enrollments", authRequired, admin, d.reports.Enrollments)
	api.GET("/reports/payments", authRequired, admin, d.reports.Payments)
}
