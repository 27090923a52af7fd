package http

import (
	"ilpotaxi/internal/config"
	jwtMiddleware "ilpotaxi/internal/middleware/jwt"
	assignmentHandler "ilpotaxi/internal/modules/assignment/interface/http"
	operatorHandler "ilpotaxi/internal/modules/operator/interface/http"
	supportHandler "ilpotaxi/internal/modules/support/interface/http"
	"ilpotaxi/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Operator    *operatorHandler.OperatorHandler
	Application *assignmentHandler.ApplicationHandler
	Chat        *supportHandler.ChatHandler
	Action      *supportHandler.ActionHandler
	Ws          *supportHandler.WsHandler
}

// BuildEngine assembles the gin engine with middleware and routes.
func BuildEngine(conf *config.Config, h Handlers, registry *prometheus.Registry) *gin.Engine {
	engine := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))
	engine.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// public client surface
	engine.POST("/api/signup/apply", h.Application.Apply)
	engine.GET("/chat/ws", h.Ws.Connect)
	engine.POST("/api/chat/transfer", h.Chat.Transfer)
	engine.POST("/api/chat/send", h.Chat.Send)
	engine.GET("/api/chat/history/:conversationUuid", h.Chat.History)

	engine.POST("/operator/register", h.Operator.Register)
	engine.POST("/operator/login", h.Operator.Login)

	authed := engine.Group("/operator")
	authed.Use(jwtMiddleware.Auth())
	authed.POST("/status", h.Action.SetStatus)
	authed.POST("/action", h.Action.Action)
	authed.GET("/stats", h.Operator.Stats)
	authed.GET("/workItems", h.Application.MyWorkItems)
	authed.GET("/workItems/unassigned", h.Application.UnassignedWorkItems)
	authed.GET("/workItems/:workItemUuid/application", h.Application.GetByWorkItem)
	authed.GET("/conversations", h.Action.MyConversations)
	authed.GET("/conversations/:conversationUuid/history", h.Chat.History)

	return engine
}
