package v1

import (
	"net/http"

	"go-ats-backend/config"
	"go-ats-backend/internal/delivery/http/middleware"
	"go-ats-backend/internal/delivery/http/response"
	"go-ats-backend/internal/domain"
	"go-ats-backend/internal/usecase"
	"go-ats-backend/pkg/security/antivirus"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	CandidateUC domain.CandidateUsecase
	HealthUC    usecase.HealthUsecase // Optional
	Scanner     antivirus.Scanner     // Optional; nil skips CV malware scanning
	Config      *config.Config
	Redis       *goredis.Client // Optional; nil keeps rate limit counters in memory
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(deps.Config.CORSAllowedOrigins)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.ErrorHandler())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Applicant Tracking System API")
	})

	api := r.Group("/api")

	// Health Check
	api.GET("/health", func(c *gin.Context) {
		if deps.HealthUC == nil {
			response.Success(c, http.StatusOK, "System operational", nil)
			return
		}
		status, healthy := deps.HealthUC.Check(c.Request.Context())
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Message: "System degraded", Data: status})
			return
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	// Swagger
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	uploadLimiter := middleware.RateLimitMiddleware(deps.Redis, middleware.UploadRateLimitConfig(deps.Config.RateLimitUploadPerMinute))
	NewCandidateHandler(api, deps.CandidateUC, deps.Scanner, deps.Config.MaxUploadSizeBytes, uploadLimiter)

	return r
}
