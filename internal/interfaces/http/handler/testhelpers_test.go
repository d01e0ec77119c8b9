package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	eventapp "github.com/agencyhq/invoicing/internal/application/event"
	"github.com/agencyhq/invoicing/internal/application/identity"
	invoicingapp "github.com/agencyhq/invoicing/internal/application/invoicing"
	"github.com/agencyhq/invoicing/internal/infrastructure/auth"
	"github.com/agencyhq/invoicing/internal/infrastructure/cache"
	"github.com/agencyhq/invoicing/internal/infrastructure/config"
	"github.com/agencyhq/invoicing/internal/infrastructure/event"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/agencyhq/invoicing/internal/infrastructure/printing"
	"github.com/agencyhq/invoicing/internal/interfaces/http/dto"
	"github.com/agencyhq/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

const (
	testAdmin    = "admin"
	testPassword = "correct horse battery"
)

// testAPI is the full HTTP stack over an in-memory sqlite database
type testAPI struct {
	t         *testing.T
	db        *gorm.DB
	engine    *gin.Engine
	jwt       *auth.JWTService
	blacklist *auth.InMemoryTokenBlacklist
	outbox    *event.GormOutboxRepository
	token     string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	publisher := event.NewOutboxPublisher(event.NewInvoicingSerializer())
	uow := persistence.NewGormUnitOfWork(db, publisher)
	invoices := persistence.NewGormInvoiceRepository(db)
	payments := persistence.NewGormPaymentRepository(db)
	outboxRepo := event.NewGormOutboxRepository(db)

	invoiceSvc := invoicingapp.NewInvoiceService(uow, invoices, payments, invoicingapp.DefaultServiceConfig(), nil)
	paymentSvc := invoicingapp.NewPaymentService(uow, invoices, payments, nil,
		invoicingapp.WithIdempotencyStore(cache.NewInMemoryIdempotencyStore(), time.Hour))
	html, err := printing.NewHTMLRenderer(printing.HTMLRendererConfig{CompanyName: "Acme Agency"})
	require.NoError(t, err)
	documentSvc := invoicingapp.NewDocumentService(invoiceSvc, nil, time.Minute, nil, html)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	jwtSvc := auth.NewJWTService(config.JWTConfig{
		Secret:                "handler-test-secret-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "invoicing-test",
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	authSvc := identity.NewAuthService(
		auth.NewAdminCredentials(config.AdminConfig{Username: testAdmin, PasswordHash: string(hash)}),
		jwtSvc, blacklist, nil)

	authH := NewAuthHandler(authSvc)
	invoiceH := NewInvoiceHandler(invoiceSvc, paymentSvc, documentSvc)
	paymentH := NewPaymentHandler(paymentSvc)
	outboxH := NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, nil))
	systemH := NewSystemHandler("invoicing", "test").AddCheck("database", sqlDB.PingContext)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", systemH.Health)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator:      jwtSvc,
		TokenBlacklist: blacklist,
		SkipPaths:      []string{"/api/v1/auth/login"},
	}))
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", authH.Logout)
	api.POST("/invoices/totals", invoiceH.ComputeTotals)
	api.POST("/invoices/numbers", invoiceH.AllocateNumber)
	api.POST("/invoices", invoiceH.Create)
	api.GET("/invoices", invoiceH.List)
	api.GET("/invoices/:id", invoiceH.Get)
	api.PATCH("/invoices/:id", invoiceH.Patch)
	api.DELETE("/invoices/:id", invoiceH.Delete)
	api.GET("/invoices/:id/balance", invoiceH.Balance)
	api.GET("/invoices/:id/document", invoiceH.Document)
	api.POST("/invoices/:id/payments", paymentH.Record)
	api.GET("/invoices/:id/payments", paymentH.ListByInvoice)
	api.GET("/payments/:id", paymentH.Get)
	api.PATCH("/payments/:id", paymentH.MarkStatus)
	api.POST("/payments/:id/complete", paymentH.Complete)
	api.DELETE("/payments/:id", paymentH.Delete)
	api.GET("/system/outbox/dead", outboxH.ListDead)
	api.POST("/system/outbox/dead/revive", outboxH.ReviveAll)
	api.GET("/system/outbox/stats", outboxH.Stats)
	api.GET("/system/outbox/:id", outboxH.Get)
	api.POST("/system/outbox/:id/revive", outboxH.Revive)
	api.GET("/system/info", systemH.GetSystemInfo)

	token, err := jwtSvc.GenerateAccessToken(testAdmin)
	require.NoError(t, err)

	return &testAPI{
		t:         t,
		db:        db,
		engine:    engine,
		jwt:       jwtSvc,
		blacklist: blacklist,
		outbox:    outboxRepo,
		token:     token.Token,
	}
}

// apiResponse mirrors dto.Response with the data left raw for typed decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func withoutAuth() requestOption {
	return func(r *http.Request) { r.Header.Del(middleware.AuthHeaderKey) }
}

func (a *testAPI) do(method, path string, body any, opts ...requestOption) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AuthHeaderKey, "Bearer "+a.token)
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out), string(resp.Data))
	return out
}

// createInvoice posts a one-line invoice of the given amount with no tax or discount
func (a *testAPI) createInvoice(amount string) invoicingapp.InvoiceResponse {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/api/v1/invoices", map[string]any{
		"lead_id": "7b0f3c2e-0000-4000-8000-000000000001",
		"items": []map[string]any{
			{"description": "Retainer", "quantity": "1", "unit_price": amount},
		},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[invoicingapp.InvoiceResponse](a.t, resp)
}

func (a *testAPI) recordPayment(invoiceID, amount string, opts ...requestOption) invoicingapp.PaymentResponse {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments", map[string]any{
		"amount": amount,
		"method": "bank_transfer",
	}, opts...)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[invoicingapp.PaymentResponse](a.t, resp)
}
