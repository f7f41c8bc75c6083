package router

import (
	"github.com/labstack/echo/v4"

	"github.com/muluken16/E-liberary/internal/handler"
	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/model"
)

// RegisterCatalog registers book browsing and listing.  Read-only lists are
// served through the response cache; the detail route is not, so every view
// is counted.
func RegisterCatalog(g *echo.Group, h *handler.CatalogHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g.GET("/books", h.ListBooks, cache)
	g.GET("/books/:id", h.GetBook)
	g.GET("/books/:id/pricing", h.Pricing, cache)
	g.GET("/categories", h.Categories, cache)

	g.POST("/books", h.CreateBook,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.UserTypeSeller, model.UserTypeAdmin),
	)
}
