package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisr/advisr-backend/internal/app/controllers"
	"github.com/advisr/advisr-backend/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	userController *controllers.UserController,
	chatController *controllers.ChatController,
	authMiddleware *middleware.AuthMiddleware,
	chatLimiter *middleware.StudentRateLimiter,
) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Advisr API"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// --- Public Auth routes ---
	router.POST("/register", authController.Register)
	router.POST("/token", authController.Login)

	// --- Authenticated Routes Group ---
	authenticated := router.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	me := authenticated.Group("/users/me")
	{
		me.GET("", userController.GetMe)
		me.GET("/subjects", userController.GetSubjects)
		me.POST("/subjects", userController.AddSubject)
		me.POST("/complete-semester", userController.CompleteSemester)
		me.GET("/history", userController.GetHistory)
	}

	chat := authenticated.Group("/chat")
	{
		chat.POST("", chatLimiter.Middleware(), chatController.Chat)
		chat.GET("/history", chatController.History)
	}
}
