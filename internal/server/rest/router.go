package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
)

const (
	publicRateLimit  = 120
	publicRateWindow = time.Minute
)

// NewRouter builds the route table. Public signing routes live in their own
// group and never pass through session authentication.
func NewRouter(h *Handler, logger logging.Logger, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(RequestID())
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		abortWith(c, http.StatusNotFound, "endpoint not found")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/uploads/pdfs/:name", h.ServeOriginal)
	r.GET("/uploads/finalized/:name", h.ServeFinalized)

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}

	protected := api.Group("")
	protected.Use(Auth(h.users))
	{
		protected.POST("/docs/upload", h.Upload)
		protected.GET("/docs", h.ListDocuments)
		protected.GET("/docs/:id", h.GetDocument)
		protected.DELETE("/docs/:id", h.DeleteDocument)
		protected.POST("/docs/:id/public-link", h.IssuePublicLink)

		protected.POST("/signatures", h.CreateSignature)
		protected.POST("/signatures/finalize", h.Finalize)
		protected.GET("/signatures/:documentId", h.ListSignatures)
		protected.DELETE("/signatures/:id", h.DeleteSignature)

		protected.GET("/audit/:documentId", h.ListAudit)
	}

	public := api.Group("/public/:token")
	public.Use(RateLimit(publicRateLimit, publicRateWindow))
	{
		public.GET("", h.GetPublicDocument)
		public.POST("/signatures", h.CreatePublicSignature)
		public.DELETE("/signatures/:id", h.DeletePublicSignature)
		public.POST("/finalize", h.FinalizePublic)
	}

	return r
}
