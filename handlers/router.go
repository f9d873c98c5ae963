package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"article-cms/logger"
	"article-cms/middleware"
	"article-cms/models"
)

type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	Logger      *logger.Logger

	Auth          *AuthHandler
	Articles      *ArticleHandler
	Versions      *VersionHandler
	Templates     *TemplateHandler
	Pages         *PageHandler
	Collaboration *CollaborationHandler
	Admin         *AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Published pages (public)
	router.GET("/pages/*path", cfg.Pages.GetPage)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", cfg.Auth.Register)
			auth.POST("/login", cfg.Auth.Login)
		}

		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware(cfg.Logger))
		{
			protected.GET("/profile", cfg.Auth.GetProfile)

			articles := protected.Group("/articles")
			{
				articles.POST("", cfg.Articles.CreateArticle)
				articles.GET("", cfg.Articles.GetArticles)
				articles.GET("/trash", cfg.Articles.GetTrash)
				articles.GET("/:number/versions", cfg.Articles.GetArticleVersions)
				articles.GET("/:number/latest", cfg.Articles.GetLatestVersion)
				articles.GET("/:number/logs", cfg.Articles.GetArticleLogs)
				articles.PUT("/:number/status", cfg.Articles.UpdateStatus)
				articles.DELETE("/:number", cfg.Articles.TrashArticle)
				articles.POST("/:number/restore", cfg.Articles.RestoreArticle)
				articles.DELETE("/:number/purge", middleware.RequireRole(models.RoleAdmin), cfg.Articles.PurgeArticle)
			}

			versions := protected.Group("/versions")
			{
				versions.GET("/:id", cfg.Versions.GetVersion)
				versions.PUT("/:id", cfg.Versions.SaveVersion)
			}

			templates := protected.Group("/templates")
			{
				templates.POST("", cfg.Templates.CreateTemplate)
				templates.GET("", cfg.Templates.GetTemplates)
			}

			collab := protected.Group("/collab")
			{
				collab.GET("/stream", cfg.Collaboration.Stream)
				rooms := collab.Group("/rooms/:type/:id")
				{
					rooms.POST("/join", cfg.Collaboration.Join)
					rooms.POST("/leave", cfg.Collaboration.Leave)
					rooms.POST("/lock", cfg.Collaboration.Lock)
					rooms.POST("/clear", cfg.Collaboration.Clear)
					rooms.POST("/notify", cfg.Collaboration.Notify)
				}
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.POST("/projections/rebuild", cfg.Admin.RebuildProjections)
			}
		}
	}

	return router
}
