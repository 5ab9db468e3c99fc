package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/trailpass/experience-booking/internal/handler"    // import the handlers that implement the transport layer
	"github.com/trailpass/experience-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated availability surface.
// Guests can browse a product's slots and inspect a single slot before
// deciding to authenticate and book.
func RegisterPublic(e *echo.Echo, p *handler.PublicSlotHandler) {
	// List a product's availability with optional date filters and pagination.
	e.GET("/v1/products/:id/slots", p.ListSlots)
	// Single slot with derived status and remaining capacity.
	e.GET("/v1/slots/:id", p.GetSlot)
}

// RegisterCustomer registers the authenticated checkout and booking
// lifecycle routes.  Tokens are issued by the external identity
// service; this engine only verifies them.  Both CUSTOMER and ADMIN
// roles may book.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, w *handler.WaitlistHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))

	// Checkout: claim capacity, release it, or convert it at payment success.
	auth.POST("/slots/:id/hold", b.PlaceHold)
	auth.DELETE("/holds/:id", b.CancelHold)
	auth.POST("/holds/:id/confirm", b.Confirm)

	// Booking lifecycle owned by the customer.
	auth.GET("/bookings", b.ListMyBookings)
	auth.GET("/bookings/:id", b.GetMyBooking)
	auth.POST("/bookings/:id/cancel", b.Cancel)

	// Waitlist entry for full slots.
	auth.POST("/slots/:id/waitlist", w.Join)
}

// RegisterAdmin registers operator routes: slot management, attendance
// marking and manual waitlist promotion.  Every route requires a valid
// token carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminSlotHandler, b *handler.BookingHandler, w *handler.WaitlistHandler, jwtSecret string) {
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))

	// Availability management.
	admin.POST("/products/:id/slots", a.CreateSlot)
	admin.POST("/products/:id/slots/bulk", a.CreateSlots)
	admin.PATCH("/slots/:id/status", a.UpdateSlotStatus)

	// Attendance marking on the slot day and after.
	admin.POST("/bookings/:id/checkin", b.CheckIn)
	admin.POST("/bookings/:id/no-show", b.MarkNoShow)

	// Manual promotion, e.g. after an operator raised capacity.
	admin.POST("/slots/:id/waitlist/promote", w.PromoteNext)
}
