package handler

import (
	invoicingapp "github.com/agencyhq/invoicing/internal/application/invoicing"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets clients retry payment recording safely
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotencyKeyLength caps the header value stored in the cache
const maxIdempotencyKeyLength = 255

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	BaseHandler
	paymentService *invoicingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *invoicingapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Record godoc
// @ID           recordPayment
// @Summary      Record a payment
// @Description  Records a PENDING payment against an invoice. The invoice status does not change until the payment completes.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        Idempotency-Key header string false "Client key; a repeated key is rejected with 409"
// @Param        request body invoicingapp.RecordPaymentInput true "Payment"
// @Success      201 {object} APIResponse[invoicingapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	var req invoicingapp.RecordPaymentInput
	if !h.BindJSON(c, &req) {
		return
	}
	req.InvoiceID = invoiceID
	req.IdempotencyKey = key

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, payment)
}

// ListByInvoice godoc
// @ID           listInvoicePayments
// @Summary      List the payments of an invoice
// @Tags         payments
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]invoicingapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [get]
func (h *PaymentHandler) ListByInvoice(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}

// Get godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[invoicingapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// MarkStatus godoc
// @ID           markPaymentStatus
// @Summary      Set a payment's status
// @Description  Completing a payment may promote its invoice to SENT or PAID
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body invoicingapp.MarkPaymentStatusInput true "New status"
// @Success      200 {object} APIResponse[invoicingapp.PaymentStatusResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [patch]
func (h *PaymentHandler) MarkStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req invoicingapp.MarkPaymentStatusInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.MarkPaymentStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Complete godoc
// @ID           completePayment
// @Summary      Complete a payment
// @Description  Shorthand for setting the status to COMPLETED
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[invoicingapp.PaymentStatusResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/complete [post]
func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.paymentService.CompletePayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Delete godoc
// @ID           deletePayment
// @Summary      Delete a payment
// @Description  Hard delete. The invoice status is left as it is.
// @Tags         payments
// @Param        id path string true "Payment ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.paymentService.DeletePayment(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
