package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-admissions-api/api/swagger"
	"github.com/noah-isme/uni-admissions-api/internal/handler"
	"github.com/noah-isme/uni-admissions-api/internal/middleware"
	"github.com/noah-isme/uni-admissions-api/internal/models"
	"github.com/noah-isme/uni-admissions-api/internal/repository"
	"github.com/noah-isme/uni-admissions-api/internal/service"
	"github.com/noah-isme/uni-admissions-api/pkg/cache"
	"github.com/noah-isme/uni-admissions-api/pkg/config"
	"github.com/noah-isme/uni-admissions-api/pkg/database"
	"github.com/noah-isme/uni-admissions-api/pkg/letters"
	"github.com/noah-isme/uni-admissions-api/pkg/lms"
	"github.com/noah-isme/uni-admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-admissions-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-admissions-api/pkg/storage"
)

// @title University Admissions API
// @version 1.0.0
// @description Admission-to-enrollment workflow service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	letterStore, err := storage.NewLocalStorage(cfg.Letters.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare letter storage", "error", err)
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	programRepo := repository.NewProgramRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	taskRepo := repository.NewProvisionTaskRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "uni-admissions-api",
		Audience:           []string{"uni-admissions"},
	})

	var programSvc *service.ProgramService
	if cfg.Cache.Enabled && redisClient != nil {
		programSvc = service.NewProgramService(programRepo, cacheRepo, metricsSvc, logr, cfg.Cache.TTL)
	} else {
		programSvc = service.NewProgramService(programRepo, nil, metricsSvc, logr, cfg.Cache.TTL)
	}

	applicationSvc := service.NewApplicationService(applicationRepo, offerRepo, programRepo, auditRepo, validate, logr, cfg.Letters.DiscountPercent)
	offerSvc := service.NewOfferService(offerRepo, applicationRepo, auditRepo, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, offerRepo, applicationRepo, auditRepo, validate, logr)

	identitySvc := service.NewIdentityService(studentRepo, cfg.Admissions.EmailDomain, cfg.Admissions.IdentityMaxRetries, logr)
	lmsClient := lms.NewClient(cfg.LMS.BaseURL, cfg.LMS.APIKey, cfg.LMS.Timeout)
	provisioningSvc := service.NewProvisioningService(studentRepo, assetRepo, taskRepo, lmsClient, auditRepo, logr,
		cfg.Provisioning.Workers, cfg.Provisioning.MaxAttempts, cfg.Provisioning.RetryBackoff, cfg.Provisioning.AccessExpiry)

	enrollmentSvc := service.NewEnrollmentService(applicationRepo, studentRepo, offerRepo, paymentRepo, programRepo,
		identitySvc, provisioningSvc, auditRepo, logr, cfg.Admissions.ProgramDurationYears)

	signer := storage.NewSignedURLSigner(cfg.Letters.SignedURLSecret, cfg.Letters.SignedURLTTL)
	letterSvc := service.NewLetterService(applicationRepo, offerRepo, paymentRepo, studentRepo,
		letters.NewRenderer(), letterStore, signer, auditRepo, logr,
		cfg.Admissions.InstitutionName, cfg.Letters.AcademicYear, cfg.Letters.Intake)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	provisioningSvc.Start(ctx)
	defer provisioningSvc.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	offerHandler := handler.NewOfferHandler(offerSvc, applicationSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, offerSvc, applicationSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, applicationSvc)
	letterHandler := handler.NewLetterHandler(letterSvc, applicationSvc)
	provisioningHandler := handler.NewProvisioningHandler(provisioningSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", middleware.JWT(authSvc), authHandler.Logout)

	api.GET("/programs", programHandler.List)
	api.GET("/programs/:id", programHandler.Get)

	// The signed token carries authorization for downloads.
	api.GET("/letters/download", letterHandler.Download)

	staffOrAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/applications", applicationHandler.List)
		authed.POST("/applications", applicationHandler.Submit)
		authed.GET("/applications/:id", applicationHandler.Get)
		authed.PUT("/applications/:id/review", staffOrAdmin, applicationHandler.Review)
		authed.PUT("/applications/:id/admit", staffOrAdmin, applicationHandler.Admit)
		authed.POST("/applications/:id/enroll", enrollmentHandler.Enroll)
		authed.GET("/applications/:id/student", enrollmentHandler.GetStudent)
		authed.POST("/applications/:id/letters/offer", letterHandler.IssueOffer)
		authed.POST("/applications/:id/letters/admission", letterHandler.IssueAdmission)

		authed.GET("/offers/:id", offerHandler.Get)
		authed.PUT("/offers/:id/respond", offerHandler.Respond)
		authed.POST("/offers/:id/payments", paymentHandler.Submit)
		authed.GET("/offers/:id/payments", paymentHandler.List)
		authed.PUT("/payments/:id/verify", staffOrAdmin, paymentHandler.Verify)

		authed.GET("/students/:id/provisioning", staffOrAdmin, provisioningHandler.Status)
		authed.POST("/students/:id/provisioning/:assetId/retry", adminOnly, provisioningHandler.RetryAsset)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
