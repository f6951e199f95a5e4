package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/xpanvictor/aura/docs"
	"github.com/xpanvictor/aura/internal/config"
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/user"
	"github.com/xpanvictor/aura/internal/handlers"
	"github.com/xpanvictor/aura/internal/handlers/websocket"
	"github.com/xpanvictor/aura/internal/metrics"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/Logger"
)

// Dependencies holds everything the HTTP surface needs.
type Dependencies struct {
	Catalog     *room.Catalog
	CustomRooms room.CustomRoomBuilder
	// UserService is nil when accounts are disabled; the auth routes are then not mounted.
	UserService user.UserService
	Archive     transcript.Archive
	Live        transcript.LiveReader
	WebSocket   *websocket.WebSocketHandler
	Metrics     *metrics.Collector
	Sessions    func() int
	Logger      *Logger.Logger
}

func NewServerDependencies(
	catalog *room.Catalog,
	customRooms room.CustomRoomBuilder,
	userService user.UserService,
	archive transcript.Archive,
	live transcript.LiveReader,
	ws *websocket.WebSocketHandler,
	collector *metrics.Collector,
	sessions func() int,
	logger *Logger.Logger,
) Dependencies {
	return Dependencies{
		Catalog:     catalog,
		CustomRooms: customRooms,
		UserService: userService,
		Archive:     archive,
		Live:        live,
		WebSocket:   ws,
		Metrics:     collector,
		Sessions:    sessions,
		Logger:      logger,
	}
}

// InitializeRoutes mounts the REST API, the websocket endpoint and the operational routes.
// ctx bounds background work such as the rate limiter's visitor cleanup.
func InitializeRoutes(ctx context.Context, cfg *config.Settings, r *gin.Engine, dep Dependencies) {
	logger := dep.Logger
	if logger == nil {
		logger = Logger.NewNop()
	}
	sessions := dep.Sessions
	if sessions == nil {
		sessions = func() int { return 0 }
	}

	r.Use(handlers.ErrorHandlerMiddleware(logger))
	r.Use(handlers.RequestLoggerMiddleware(logger))
	if dep.Metrics != nil {
		r.Use(dep.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(dep.Metrics.Handler()))
	}

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	r.GET("/health", handlers.Health(sessions))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(handlers.CORSMiddleware())
	api.Use(handlers.RateLimitMiddleware(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	roomHandler := handlers.NewRoomHandler(dep.Catalog, dep.CustomRooms, logger)
	api.GET("/rooms", roomHandler.ListRooms)
	api.POST("/custom-room", roomHandler.CreateCustomRoom)

	if dep.UserService != nil {
		userHandler := handlers.NewUserHandler(dep.UserService, logger)
		auth := api.Group("/auth")
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
		auth.GET("/me", handlers.AuthMiddleware(dep.UserService, logger), userHandler.GetProfile)
	} else {
		logger.Warn("accounts disabled, auth routes not mounted")
	}

	convHandler := handlers.NewConversationHandler(dep.Archive, dep.Live, logger)
	conv := api.Group("/conversations", handlers.OptionalAuthMiddleware(dep.UserService, logger))
	conv.GET("", convHandler.ListConversations)
	conv.GET("/:id", convHandler.GetConversation)
	conv.GET("/:id/live", convHandler.GetLiveConversation)

	if dep.WebSocket != nil {
		dep.WebSocket.RegisterRoutes(r)
	}
}
