package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"mangahub/internal/core"
	"mangahub/internal/gateway"
	"mangahub/internal/protocols/websocket"
	"mangahub/pkg/database"
)

// RouterDeps collects everything the gateway router serves.
type RouterDeps struct {
	Auth     core.AuthService
	Catalog  core.CatalogService
	Library  core.LibraryService
	Progress core.ProgressService
	Rating   core.RatingService

	DB *database.DB

	ProgressHub      *gateway.SSEHub
	NotificationsHub *gateway.SSEHub
	UserManager      *gateway.UserManager
	Chat             *websocket.Handler

	CORSAllowOrigins   []string
	RateLimitPerMinute int
	MaxRequestSizeMB   int64
}

// NewRouter builds the full REST surface under /api/v1 plus /health.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORSMiddleware(deps.CORSAllowOrigins))
	router.Use(RateLimitMiddleware(deps.RateLimitPerMinute))
	router.Use(BodySizeLimit(deps.MaxRequestSizeMB))

	authHandlers := NewAuthHandlers(deps.Auth, deps.UserManager)
	mangaHandlers := NewMangaHandlers(deps.Catalog, deps.Rating)
	userHandlers := NewUserHandlers(deps.Library, deps.Progress)

	requireAuth := AuthMiddleware(deps.Auth)
	optionalAuth := OptionalAuthMiddleware(deps.Auth)

	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := nethttp.StatusOK
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				status = "degraded"
				code = nethttp.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status})
	})

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandlers.Register)
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", requireAuth, authHandlers.Logout)
	}

	manga := v1.Group("/manga")
	{
		manga.GET("", optionalAuth, mangaHandlers.Search)
		manga.GET("/genres", mangaHandlers.ListGenres)
		manga.GET("/popular", mangaHandlers.Popular)
		manga.GET("/stats", mangaHandlers.Stats)
		manga.GET("/chapters/:chapter_id/pages", mangaHandlers.GetChapterPages)
		manga.GET("/:id", optionalAuth, mangaHandlers.GetByID)
		manga.GET("/:id/chapters", mangaHandlers.ListChapters)
		manga.GET("/:id/ratings", optionalAuth, mangaHandlers.GetRatingStats)
		manga.POST("/:id/rating", requireAuth, mangaHandlers.Rate)
		manga.DELETE("/:id/rating", requireAuth, mangaHandlers.Unrate)

		admin := manga.Group("", requireAuth, AdminMiddleware())
		{
			admin.POST("", mangaHandlers.Create)
			admin.PUT("/:id", mangaHandlers.Update)
			admin.DELETE("/:id", mangaHandlers.Delete)
			admin.POST("/:id/chapters", mangaHandlers.AddChapter)
		}
	}

	users := v1.Group("/users", requireAuth)
	{
		users.GET("/profile", authHandlers.GetProfile)
		users.PUT("/profile", authHandlers.UpdateProfile)
		users.PUT("/password", authHandlers.ChangePassword)

		users.GET("/library", userHandlers.GetLibrary)
		users.GET("/library/filtered", userHandlers.GetLibraryFiltered)
		users.GET("/library/stats", userHandlers.GetLibraryStats)
		users.POST("/library", userHandlers.AddToLibrary)
		users.DELETE("/library/:manga_id", userHandlers.RemoveFromLibrary)

		users.GET("/progress", userHandlers.GetProgress)
		users.PUT("/progress", userHandlers.UpdateProgress)
		users.PUT("/progress/batch", userHandlers.BatchUpdateProgress)
	}

	if deps.ProgressHub != nil && deps.NotificationsHub != nil {
		sse := v1.Group("/sse", requireAuth)
		{
			sse.GET("/progress", deps.ProgressHub.Serve)
			sse.GET("/notifications", deps.NotificationsHub.Serve)
		}
	}

	if deps.Chat != nil {
		v1.GET("/ws/chat", deps.Chat.HandleChat)
		v1.GET("/chat/rooms/:room/status", optionalAuth, deps.Chat.HandleRoomStatus)
	}

	return router
}
