package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/doc-lifecycle/internal/application/service"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

func (h *Handlers) transitioned(c *gin.Context, res *workflow.TransitionResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"subject":         res.Subject,
		"action":          res.Action,
		"previous_status": res.PreviousStatus,
		"new_status":      res.NewStatus,
		"no_op":           res.NoOp,
	})
}

func (h *Handlers) respond(c *gin.Context, status int, data interface{}, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status, data)
}

// Void applications

type voidRequest struct {
	Reason      string   `json:"reason"`
	Attachments []string `json:"attachments"`
}

func (h *Handlers) ApplyVoid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req voidRequest
	if !bind(c, &req) {
		return
	}
	app, err := h.services.Voids.Apply(c.Request.Context(), actorFrom(c), id, req.Reason, req.Attachments)
	h.respond(c, http.StatusCreated, app, err)
}

func (h *Handlers) DirectVoid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	app, err := h.services.Voids.DirectVoid(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.respond(c, http.StatusCreated, app, err)
}

func (h *Handlers) GetVoidApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.services.Voids.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, app, err)
}

func (h *Handlers) AuditVoid(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Voids.Audit(c.Request.Context(), actorFrom(c), id, req.Pass, req.Reason)
	h.transitioned(c, res, err)
}

// Payments

func (h *Handlers) ListPayments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	payments, err := h.services.Payments.ListByQuote(c.Request.Context(), id)
	h.respond(c, http.StatusOK, payments, err)
}

func (h *Handlers) CreatePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	p, err := h.services.Payments.Create(c.Request.Context(), actorFrom(c), id, req.Amount)
	h.respond(c, http.StatusCreated, p, err)
}

func (h *Handlers) GetPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.services.Payments.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, p, err)
}

func (h *Handlers) SubmitPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.services.Payments.Submit(c.Request.Context(), actorFrom(c), id)
	h.transitioned(c, res, err)
}

func (h *Handlers) ConfirmPayment(c *gin.Context) {
	h.paymentWithReason(c, h.services.Payments.Confirm)
}

func (h *Handlers) ReturnPayment(c *gin.Context) {
	h.paymentWithReason(c, h.services.Payments.Return)
}

func (h *Handlers) CancelPayment(c *gin.Context) {
	h.paymentWithReason(c, h.services.Payments.Cancel)
}

type reasonedTransition func(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)

func (h *Handlers) paymentWithReason(c *gin.Context, fn reasonedTransition) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	res, err := fn(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.transitioned(c, res, err)
}

// Corrections

func (h *Handlers) CreateCorrection(c *gin.Context) {
	var req service.CreateCorrectionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	corr, err := h.services.Corrections.Create(c.Request.Context(), actorFrom(c), req)
	h.respond(c, http.StatusCreated, corr, err)
}

func (h *Handlers) GetCorrection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	corr, err := h.services.Corrections.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, corr, err)
}

func (h *Handlers) SubmitCorrection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Attachments []string `json:"attachments"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.services.Corrections.Submit(c.Request.Context(), actorFrom(c), id, req.Attachments)
	h.transitioned(c, res, err)
}

func (h *Handlers) ApproveCorrection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	corr, err := h.services.Corrections.Approve(c.Request.Context(), actorFrom(c), id)
	h.respond(c, http.StatusOK, corr, err)
}

func (h *Handlers) RejectCorrection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.services.Corrections.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.transitioned(c, res, err)
}

// Invoice applications

func (h *Handlers) ListInvoiceApplications(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	apps, err := h.services.Invoices.ListByQuote(c.Request.Context(), id)
	h.respond(c, http.StatusOK, apps, err)
}

func (h *Handlers) SubmitInvoiceApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.CreateInvoiceApplicationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.QuoteID = id
	app, err := h.services.Invoices.Submit(c.Request.Context(), actorFrom(c), req)
	h.respond(c, http.StatusCreated, app, err)
}

func (h *Handlers) GetInvoiceApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.services.Invoices.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, app, err)
}

func (h *Handlers) AuditInvoiceApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Invoices.Audit(c.Request.Context(), actorFrom(c), id, req.Pass, req.Reason)
	h.transitioned(c, res, err)
}

func (h *Handlers) CancelInvoiceApplication(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.services.Invoices.Cancel(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.transitioned(c, res, err)
}

// Permission requests

func (h *Handlers) RequestPermission(c *gin.Context) {
	var req struct {
		TargetUserID int64    `json:"target_user_id"`
		Capabilities []string `json:"capabilities"`
		Reason       string   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	pr, err := h.services.Permissions.Request(c.Request.Context(), actorFrom(c), req.TargetUserID, req.Capabilities, req.Reason)
	h.respond(c, http.StatusCreated, pr, err)
}

func (h *Handlers) GetPermissionRequest(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pr, err := h.services.Permissions.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, pr, err)
}

func (h *Handlers) DecidePermission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	pr, err := h.services.Permissions.Decide(c.Request.Context(), actorFrom(c), id, domainwf.Action(req.Action), req.Note)
	h.respond(c, http.StatusOK, pr, err)
}

func (h *Handlers) ResubmitPermission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pr, err := h.services.Permissions.Resubmit(c.Request.Context(), actorFrom(c), id)
	h.respond(c, http.StatusOK, pr, err)
}

// Damage records

func (h *Handlers) CreateDamageRecord(c *gin.Context) {
	var req struct {
		Behavior    string `json:"behavior" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	rec, err := h.services.Damages.Create(c.Request.Context(), actorFrom(c), req.Behavior, req.Description)
	h.respond(c, http.StatusCreated, rec, err)
}

func (h *Handlers) GetDamageRecord(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rec, err := h.services.Damages.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, rec, err)
}

func (h *Handlers) UpdateRepairStage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Stage      string              `json:"stage" binding:"required"`
		Settlement *service.Settlement `json:"settlement"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Damages.UpdateRepairStage(c.Request.Context(), actorFrom(c), id, req.Stage, req.Settlement)
	h.transitioned(c, res, err)
}

func (h *Handlers) ConfirmCompensation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Amount   float64 `json:"amount"`
		ProofURL string  `json:"proof_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Damages.ConfirmCompensation(c.Request.Context(), actorFrom(c), id, req.Amount, req.ProofURL)
	h.transitioned(c, res, err)
}
