package handlers

import (
	"net/http"

	_ "sensor_gateway/docs"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/models"
	"sensor_gateway/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// WithMetrics exposes m under GET /metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live status stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/enroll", h.enrollOperator)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		h.registerGatewayRoutes(api)
		h.registerLogRoutes(api)
		api.POST("/users", requireRole(models.RoleOperator), h.addViewer)
	}
}

func (h *Handler) registerGatewayRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.GET("/readings", h.getReadings)
	// fault records carry stack traces
	api.GET("/faults", requireRole(models.RoleOperator), h.getFaults)
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
