package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/procedure-staffing-api/internal/handler"
	"github.com/noah-isme/procedure-staffing-api/internal/middleware"
	"github.com/noah-isme/procedure-staffing-api/internal/models"
	"github.com/noah-isme/procedure-staffing-api/pkg/config"
	"github.com/noah-isme/procedure-staffing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/procedure-staffing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/procedure-staffing-api/pkg/middleware/requestid"
)

// Router builds the HTTP surface.
func (a *App) Router() (*gin.Engine, error) {
	cfg := a.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	acceptLimit, err := middleware.RateLimit(cfg.RateLimit.Accept)
	if err != nil {
		return nil, fmt.Errorf("accept rate limit: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics, "/health", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.Metrics)
	authHandler := handler.NewAuthHandler(a.Auth)
	userHandler := handler.NewUserHandler(a.Auth)
	postingHandler := handler.NewPostingHandler(a.Postings, a.Exports)
	candidateHandler := handler.NewCandidateHandler(a.Candidates)

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.Auth))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/status", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Status)
	secured.POST("/users", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(a.Logger, "user.create"), userHandler.Create)

	posters := middleware.RequireRoles(models.RoleClinic, models.RoleAdmin)
	candidates := middleware.RequireRoles(models.RoleAnaesthetist)

	secured.GET("/candidates", posters, candidateHandler.List)

	postings := secured.Group("/postings")
	postings.POST("", posters, middleware.Audit(a.Logger, "posting.create"), postingHandler.Create)
	postings.GET("", posters, postingHandler.List)
	postings.GET("/export", posters, postingHandler.Export)
	postings.GET("/visible", candidates, postingHandler.Visible)
	postings.GET("/:id", posters, postingHandler.Get)
	postings.POST("/:id/accept", candidates, acceptLimit, middleware.Audit(a.Logger, "posting.accept"), postingHandler.Accept)
	postings.POST("/:id/confirm", posters, middleware.Audit(a.Logger, "posting.confirm"), postingHandler.Confirm)
	postings.POST("/:id/cancel", posters, middleware.Audit(a.Logger, "posting.cancel"), postingHandler.Cancel)

	return r, nil
}
