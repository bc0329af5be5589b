package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-instance-catalog/docs"
	"go-instance-catalog/internal/api/handler"
	"go-instance-catalog/pkg/router"
)

func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/catalogs", handler.CreateCatalog)
	r.GET("/api/v1/catalogs", handler.ListCatalogs)
	r.GET("/api/v1/capabilities", handler.GetCapabilities)
	r.GET("/api/v1/catalogs/*/errors", handler.GetCatalogErrors)
	r.GET("/api/v1/catalogs/*/summary", handler.GetCatalogSummary)
	r.GET("/api/v1/catalogs/*/download", handler.DownloadCatalog)
	r.POST("/api/v1/catalogs/*/retry", handler.RetryCatalog)
	r.POST("/api/v1/catalogs/*/cancel", handler.CancelCatalog)
	r.GET("/api/v1/catalogs/*", handler.GetCatalog)
	r.DELETE("/api/v1/catalogs/*", handler.DeleteCatalog)

	r.Mount("/swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// NewRouter builds the API router with request IDs, panic recovery and CORS
func NewRouter(allowedOrigins []string) *router.Router {
	r := router.New()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)
	RegisterRoutes(r)
	return r
}
