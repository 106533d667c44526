package routes

import (
	"net/http"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/api/handlers"
	"github.com/MalcolmMc23/Alumo/internal/api/middleware"
	"github.com/MalcolmMc23/Alumo/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth         *handlers.AuthHandler
	Conversation *handlers.ConversationHandler
	Completion   *handlers.CompletionHandler
	Resume       *handlers.ResumeHandler
	User         *handlers.UserHandler
	Document     *handlers.DocumentHandler

	AuthService services.AuthService
	UserService services.UserService

	CORSOrigins []string
	// UploadsDir is served at /uploads when blobs live on local disk.
	UploadsDir string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	}
	r.GET("/ping", health)
	r.GET("/health", health)

	if d.UploadsDir != "" {
		r.Static("/uploads", d.UploadsDir)
	}

	api := r.Group("/api")

	// Public
	api.GET("/auth/google/login", d.Auth.GoogleLogin)
	api.GET("/auth/google/callback", d.Auth.GoogleCallback)
	api.POST("/auth/logout", d.Auth.Logout)
	api.POST("/chat/resume", d.Resume.Extract)
	api.GET("/documents/test-jwt", d.Document.TestJWT)
	api.POST("/documents/callback", d.Document.Callback)

	// Session required
	auth := api.Group("")
	auth.Use(middleware.SessionAuth(d.AuthService, d.UserService))

	auth.POST("/chat", d.Conversation.Create)
	auth.GET("/chat", d.Conversation.List)
	auth.POST("/chat/openrouter", d.Completion.Complete)
	auth.POST("/chat/resume/analyze", d.Completion.AnalyzeResume)
	auth.GET("/chat/:id", d.Conversation.Get)
	auth.PATCH("/chat/:id", d.Conversation.Append)

	auth.GET("/user", d.User.Me)
	auth.POST("/user/profile", d.User.UpdateProfile)
	auth.POST("/user/resume", d.User.UploadResume)

	auth.GET("/documents", d.Document.List)
	auth.POST("/documents/upload", d.Document.Upload)
	auth.GET("/documents/:fileId", d.Document.Open)
	auth.GET("/documents/:fileId/callbacks", d.Document.Callbacks)
}
