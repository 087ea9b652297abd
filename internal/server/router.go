package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Longt00/company-sub000/internal/http/handlers"
	"github.com/Longt00/company-sub000/internal/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AccessPrefix   string
	AllowedOrigins []string

	AuthMiddleware *middleware.AuthMiddleware
	FileHandler    *handlers.FileHandler
	MediaHandler   *handlers.MediaHandler
	UploadHandler  *handlers.UploadHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Range", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Range", "Accept-Ranges", "Content-Disposition"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	prefix := strings.TrimRight(cfg.AccessPrefix, "/")
	router.GET(prefix+"/*filepath", cfg.FileHandler.Serve)

	media := router.Group("/api/media")
	{
		media.GET("/categories", cfg.MediaHandler.ActiveCategories)
		media.GET("/info", cfg.MediaHandler.FileInfo)
		media.GET("/latest", cfg.MediaHandler.LatestByCategory)
	}

	// ===============
	// || Protected ||
	// ===============
	admin := router.Group("/api/admin/files")
	admin.Use(cfg.AuthMiddleware.RequireAuth())
	{
		admin.POST("/upload", cfg.UploadHandler.Upload)
		admin.POST("/upload/batch", cfg.UploadHandler.UploadBatch)
		admin.DELETE("", cfg.UploadHandler.Delete)
		admin.POST("/delete/batch", cfg.UploadHandler.DeleteBatch)
		admin.GET("", cfg.UploadHandler.FilesByCategory)
		admin.GET("/info", cfg.UploadHandler.FileInfo)
		admin.GET("/exists", cfg.UploadHandler.FileExists)
		admin.GET("/original-name", cfg.UploadHandler.OriginalFileName)
		admin.GET("/download", cfg.FileHandler.Download)
		admin.POST("/copy", cfg.UploadHandler.CopyFile)
		admin.POST("/move", cfg.UploadHandler.MoveFile)
	}

	return router
}
