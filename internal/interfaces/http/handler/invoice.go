package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	invoicingapp "github.com/agencyhq/invoicing/internal/application/invoicing"
	"github.com/agencyhq/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	BaseHandler
	invoiceService  *invoicingapp.InvoiceService
	paymentService  *invoicingapp.PaymentService
	documentService *invoicingapp.DocumentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(
	invoiceService *invoicingapp.InvoiceService,
	paymentService *invoicingapp.PaymentService,
	documentService *invoicingapp.DocumentService,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:  invoiceService,
		paymentService:  paymentService,
		documentService: documentService,
	}
}

// DocumentLinkResponse points at an archived invoice document
type DocumentLinkResponse struct {
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	StorageKey  string    `json:"storage_key"`
	Format      string    `json:"format" example:"pdf"`
}

// ComputeTotals godoc
// @ID           computeInvoiceTotals
// @Summary      Preview invoice totals
// @Description  Computes subtotal, discount, tax and total for a set of lines without saving anything
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body invoicingapp.ComputeTotalsInput true "Lines and rates"
// @Success      200 {object} APIResponse[invoicingapp.TotalsResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/totals [post]
func (h *InvoiceHandler) ComputeTotals(c *gin.Context) {
	var req invoicingapp.ComputeTotalsInput
	if !h.BindJSON(c, &req) {
		return
	}

	totals, err := h.invoiceService.ComputeTotals(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, totals)
}

// AllocateNumber godoc
// @ID           allocateInvoiceNumber
// @Summary      Allocate an invoice number
// @Description  Reserves the next number of the current year's sequence
// @Tags         invoices
// @Produce      json
// @Success      201 {object} APIResponse[invoicingapp.InvoiceNumberResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/numbers [post]
func (h *InvoiceHandler) AllocateNumber(c *gin.Context) {
	number, err := h.invoiceService.AllocateInvoiceNumber(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, number)
}

// Create godoc
// @ID           createInvoice
// @Summary      Create an invoice
// @Description  Creates a DRAFT invoice with a freshly allocated number
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body invoicingapp.CreateInvoiceInput true "Invoice"
// @Success      201 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req invoicingapp.CreateInvoiceInput
	if !h.BindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("%s/%s", c.FullPath(), invoice.ID))
	h.Created(c, invoice)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Param        status query string false "Filter by status" Enums(DRAFT, SENT, VIEWED, PAID, OVERDUE, CANCELLED)
// @Param        lead_id query string false "Filter by lead" format(uuid)
// @Param        order_by query string false "Sort field" default(issue_date)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req invoicingapp.ListInvoicesInput
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.invoiceService.ListInvoices(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice
// @Description  Returns the invoice with its items, payments and balance
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoicingapp.InvoiceDetailResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Patch godoc
// @ID           patchInvoice
// @Summary      Update an invoice
// @Description  Sets status, paid date, notes or terms. Any status may follow any other.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body invoicingapp.PatchInvoiceInput true "Fields to change"
// @Success      200 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [patch]
func (h *InvoiceHandler) Patch(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req invoicingapp.PatchInvoiceInput
	if !h.BindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.PatchInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Delete godoc
// @ID           deleteInvoice
// @Summary      Delete an invoice
// @Description  Hard delete; items and payments go with it
// @Tags         invoices
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Balance godoc
// @ID           getInvoiceBalance
// @Summary      Get the invoice balance
// @Description  Sum of completed payments and the remaining balance. The balance is negative when overpaid.
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoicingapp.BalanceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/balance [get]
func (h *InvoiceHandler) Balance(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	balance, err := h.paymentService.Balance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// Document godoc
// @ID           getInvoiceDocument
// @Summary      Render the invoice document
// @Description  Streams the rendered invoice. With link=true the archived copy's presigned URL is returned instead.
// @Tags         invoices
// @Produce      html
// @Produce      application/pdf
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        format query string false "Document format" Enums(html, pdf) default(html)
// @Param        link query bool false "Return a download link instead of the document"
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/document [get]
func (h *InvoiceHandler) Document(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	wantLink, _ := strconv.ParseBool(c.DefaultQuery("link", "false"))

	result, err := h.documentService.Render(c.Request.Context(), id, c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if wantLink {
		if result.DownloadURL == "" {
			h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "Document archive is not available")
			return
		}
		h.Success(c, DocumentLinkResponse{
			DownloadURL: result.DownloadURL,
			ExpiresAt:   result.ExpiresAt,
			StorageKey:  result.StorageKey,
			Format:      c.DefaultQuery("format", "html"),
		})
		return
	}

	doc := result.Document
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}
