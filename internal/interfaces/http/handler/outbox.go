package handler

import (
	"github.com/agencyhq/invoicing/internal/application/event"
	"github.com/gin-gonic/gin"
)

// OutboxHandler serves the ledger event delivery console under
// /system/outbox. Dead events can be listed per invoice and revived.
type OutboxHandler struct {
	BaseHandler
	outbox *event.OutboxService
}

func NewOutboxHandler(outbox *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// reviveQuery scopes a bulk revive to one invoice
type reviveQuery struct {
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
}

// Stats godoc
// @ID           getOutboxStats
// @Summary      Count ledger events by delivery status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[event.OutboxStatsDTO]
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListDead godoc
// @ID           listOutboxDead
// @Summary      List ledger events that exhausted their delivery attempts
// @Tags         outbox
// @Produce      json
// @Param        invoice_id query string false "Only events of this invoice" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/dead [get]
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var q event.DeadLetterQuery
	if !h.BindQuery(c, &q) {
		return
	}
	page, err := h.outbox.ListDead(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ReviveAll godoc
// @ID           reviveOutboxDead
// @Summary      Revive every dead ledger event, or those of one invoice
// @Tags         outbox
// @Produce      json
// @Param        invoice_id query string false "Only events of this invoice" format(uuid)
// @Success      200 {object} APIResponse[CountData]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/dead/revive [post]
func (h *OutboxHandler) ReviveAll(c *gin.Context) {
	var q reviveQuery
	if !h.BindQuery(c, &q) {
		return
	}
	n, err := h.outbox.ReviveAll(c.Request.Context(), q.InvoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: n})
}

// Get godoc
// @ID           getOutboxEntry
// @Summary      Get one outbox entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/{id} [get]
func (h *OutboxHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.outbox.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Revive godoc
// @ID           reviveOutboxEntry
// @Summary      Put one dead ledger event back in line
// @Description  Resets the attempt budget. Entries that are not DEAD are rejected with 409.
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID" format(uuid)
// @Success      200 {object} APIResponse[event.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/outbox/{id}/revive [post]
func (h *OutboxHandler) Revive(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.outbox.Revive(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
