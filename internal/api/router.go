package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/hearth/internal/api/handler"
	"github.com/timmy/hearth/internal/api/middleware"
	"github.com/timmy/hearth/internal/metrics"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Health    *handler.HealthHandler
	Search    *handler.SearchHandler
	Documents *handler.DocumentHandler
	Tags      *handler.TagHandler
	Whitelist *handler.WhitelistHandler
	Admin     *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, mode string, cors middleware.CORSConfig) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cors))
	r.Use(metrics.Middleware())

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// Search
		v1.POST("/search", h.Search.Search)
		v1.GET("/search", h.Search.SearchGet)

		// Documents
		v1.GET("/documents", h.Documents.ListDocuments)
		v1.POST("/documents", h.Documents.CreateDocument)
		v1.GET("/documents/years", h.Documents.GetYearRange)
		v1.GET("/documents/framework/:framework", h.Documents.ListByFramework)
		v1.GET("/documents/:id", h.Documents.GetDocument)
		v1.PUT("/documents/:id", h.Documents.UpdateDocument)

		// Tags
		v1.GET("/tags", h.Tags.ListTags)
		v1.POST("/tags/classify", h.Tags.Classify)

		// Whitelist
		v1.GET("/whitelist", h.Whitelist.ListDomains)
		v1.POST("/whitelist", h.Whitelist.AddDomain)
		v1.DELETE("/whitelist/:domain", h.Whitelist.RemoveDomain)

		// Admin
		admin := v1.Group("/admin")
		admin.POST("/index/rebuild", h.Admin.RebuildIndex)
		admin.POST("/embeddings/regenerate", h.Admin.RegenerateEmbeddings)
	admin.POST("/taxonomy/reload", h.Admin.ReloadTaxonomy)
		admin.GET("/jobs", h.Admin.ListJobs)
		admin.GET("/jobs/status", h.Admin.GetJobStatus)
	}

	return r
}
