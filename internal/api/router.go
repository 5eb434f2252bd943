package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with middlewares and routes registered.
// allowedOrigins lists the browser origins that may call the API; empty means
// none.
func NewRouter(handler *Handler, logger *zap.Logger, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)

	r.Use(gin.Recovery())
	r.Use(Logger(logger))
	r.Use(Cors(allowedOrigins))
	r.Use(RequireJSON())

	registerRoutes(r, handler)
	return r
}

func registerRoutes(r *gin.Engine, handler *Handler) {
	apiGroup := r.Group("/api")
	{
		conversations := apiGroup.Group("/conversations")
		{
			conversations.GET("", handler.ListConversations)
			conversations.POST("", handler.CreateConversation)
			conversations.POST("/delete", handler.DeleteConversations)
			conversations.GET("/:id", handler.GetConversation)
			conversations.PATCH("/:id", handler.UpdateConversation)
			conversations.DELETE("/:id", handler.DeleteConversation)
			conversations.POST("/:id/messages", handler.AppendMessages)
		}
	}
}
