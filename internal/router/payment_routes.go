package router

import (
	"github.com/labstack/echo/v4"

	"github.com/muluken16/E-liberary/internal/handler"
	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/model"
)

// RegisterPayments registers checkout, verification and the provider
// webhook.  Checkout works for guests; the caller is attached when a bearer
// token is present.  The webhook is authenticated by its signature only.
func RegisterPayments(g *echo.Group, h *handler.PaymentHandler, jwtSecret string, strict echo.MiddlewareFunc) {
	p := g.Group("/payments")

	p.POST("/chapa", h.CreateChapa, strict, middleware.OptionalJWT(jwtSecret))
	p.GET("/chapa", h.VerifyChapa)
	p.POST("/chapa/verify", h.VerifyChapaPost)
	p.POST("/chapa/webhook", h.Webhook)
	p.GET("/chapa/methods", h.Methods)
	p.GET("/chapa/currencies", h.Currencies)

	authed := p.Group("", middleware.JWTAuth(jwtSecret))
	authed.POST("/process", h.Process, strict)
	authed.GET("/mine", h.Mine)
	authed.POST("/:tx_ref/refund", h.Refund, middleware.RequireRole(model.UserTypeAdmin))
}

// RegisterPurchases registers entitlement lookups.
func RegisterPurchases(g *echo.Group, h *handler.PurchaseHandler, jwtSecret string) {
	up := g.Group("/user-purchases")
	up.GET("/check-access/:book_id", h.CheckAccess, middleware.OptionalJWT(jwtSecret))
	up.GET("/mine", h.Mine, middleware.JWTAuth(jwtSecret))
}
