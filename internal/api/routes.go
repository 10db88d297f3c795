package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/auth"
	"cvforge/internal/billing"
	"cvforge/internal/config"
	"cvforge/internal/subscription"
	"cvforge/internal/template"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	blob BlobStorage,
) {
	resolver := subscription.NewResolver(db, cfg.Billing.PriceIDPro, cfg.Billing.PriceIDProPlus)
	policy := template.NewPolicy(cfg.Templates.UnlockAll, cfg.Resume.FreeMaxResumes)

	resumeHandler := NewResumeHandler(db, asynqClient, blob, resolver, policy)
	authHandler := NewAuthHandler(db, authService, redisClient, logger, cfg.Auth.LoginRateLimitPerHour, cfg.Auth.CookieDomain)
	wsHandler := NewNotifyHandler(redisClient, authService, logger, nil)
	photoHandler := NewPhotoHandler(blob, logger, cfg.Clamd.Addr)
	templateHandler := NewTemplateHandler(resolver, policy)
	subscriptionHandler := NewSubscriptionHandler(resolver, logger)
	webhookHandler := billing.NewWebhookHandler(db, redisClient, logger, cfg.Billing.WebhookSecret)
	printHandler := NewPrintHandler(db, blob, logger)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		// 计费回调由签名校验保护，不走用户鉴权。
		v1.POST("/billing/webhook", webhookHandler.HandleEvent)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PATCH("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/export", resumeHandler.ExportResume)
			resumeGroup.GET("/:id/download-link", resumeHandler.GetDownloadLink)
		}

		photoGroup := v1.Group("/photos")
		photoGroup.Use(authMiddleware)
		{
			photoGroup.POST("/upload", photoHandler.UploadPhoto)
			photoGroup.GET("", photoHandler.ListPhotos)
			photoGroup.GET("/view", photoHandler.GetPhotoURL)
		}

		templateGroup := v1.Group("/templates")
		templateGroup.Use(authMiddleware)
		{
			templateGroup.GET("", templateHandler.ListTemplates)
			templateGroup.GET("/:id", templateHandler.GetTemplate)
		}

		v1.GET("/subscription", authMiddleware, subscriptionHandler.GetSubscription)

		internalGroup := v1.Group("/internal")
		internalGroup.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
		{
			internalGroup.GET("/print/resume/:id", printHandler.GetPrintResumeData)
		}
	}
}
