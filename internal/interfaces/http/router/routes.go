package router

import (
	"github.com/agencyhq/invoicing/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// APIHandlers are the handlers mounted under the versioned API.
// Outbox may be nil when the outbox processor is disabled. OperatorGuard,
// when set, runs in front of the outbox console.
type APIHandlers struct {
	Auth          *handler.AuthHandler
	Invoice       *handler.InvoiceHandler
	Payment       *handler.PaymentHandler
	System        *handler.SystemHandler
	Outbox        *handler.OutboxHandler
	OperatorGuard gin.HandlerFunc
}

// APIGroups builds the invoicing route groups
func APIGroups(h APIHandlers) []*DomainGroup {
	auth := NewDomainGroup("auth", "/auth").
		POST("/login", h.Auth.Login).
		POST("/logout", h.Auth.Logout)

	invoices := NewDomainGroup("invoices", "/invoices").
		POST("/totals", h.Invoice.ComputeTotals).
		POST("/numbers", h.Invoice.AllocateNumber).
		POST("", h.Invoice.Create).
		GET("", h.Invoice.List).
		GET("/:id", h.Invoice.Get).
		PATCH("/:id", h.Invoice.Patch).
		DELETE("/:id", h.Invoice.Delete).
		GET("/:id/balance", h.Invoice.Balance).
		GET("/:id/document", h.Invoice.Document).
		POST("/:id/payments", h.Payment.Record).
		GET("/:id/payments", h.Payment.ListByInvoice)

	payments := NewDomainGroup("payments", "/payments").
		GET("/:id", h.Payment.Get).
		PATCH("/:id", h.Payment.MarkStatus).
		POST("/:id/complete", h.Payment.Complete).
		DELETE("/:id", h.Payment.Delete)

	system := NewDomainGroup("system", "/system").
		GET("/health", h.System.Health).
		GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)
	if h.Outbox != nil {
		outbox := system.Group("outbox", "/outbox")
		if h.OperatorGuard != nil {
			outbox.Use(h.OperatorGuard)
		}
		outbox.
			GET("/stats", h.Outbox.Stats).
			GET("/dead", h.Outbox.ListDead).
			POST("/dead/revive", h.Outbox.ReviveAll).
			GET("/:id", h.Outbox.Get).
			POST("/:id/revive", h.Outbox.Revive)
	}

	return []*DomainGroup{auth, invoices, payments, system}
}

// RegisterAPI mounts every invoicing route group on r
func RegisterAPI(r *Router, h APIHandlers) *Router {
	for _, group := range APIGroups(h) {
		r.Register(group)
	}
	return r
}
