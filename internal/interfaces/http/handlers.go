package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/doc-lifecycle/internal/application/service"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	services    Services
	logger      Logger
	healthCheck func() error
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.healthCheck != nil {
		if err := h.healthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
	}
	respondOK(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// WhoAmI returns the resolved caller
func (h *Handlers) WhoAmI(c *gin.Context) {
	actor := actorFrom(c)
	respondOK(c, http.StatusOK, gin.H{
		"id":           actor.ID,
		"roles":        actor.Roles,
		"capabilities": actor.Capabilities(),
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type auditRequest struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// Quotes

func (h *Handlers) CreateQuote(c *gin.Context) {
	var req service.CreateQuoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	q, err := h.services.Quotes.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, q)
}

func (h *Handlers) GetQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := h.services.Quotes.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

func (h *Handlers) SubmitQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CustomerConfirmerID *int64 `json:"customer_confirmer_id"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.services.Quotes.Submit(c.Request.Context(), actorFrom(c), id, req.CustomerConfirmerID)
	h.transitioned(c, res, err)
}

func (h *Handlers) FinanceAuditQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AuditDecision
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Quotes.FinanceAudit(c.Request.Context(), actorFrom(c), id, req)
	h.transitioned(c, res, err)
}

func (h *Handlers) AssignCollector(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CollectorID int64 `json:"collector_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Quotes.AssignCollector(c.Request.Context(), actorFrom(c), id, req.CollectorID)
	h.transitioned(c, res, err)
}

func (h *Handlers) FallbackQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.services.Quotes.Fallback(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.transitioned(c, res, err)
}

// Quote versions

func (h *Handlers) ListVersions(c *gin.Context) {
	versions, err := h.services.Versions.List(c.Request.Context(), c.Param("quoteNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, versions)
}

func (h *Handlers) CreateVersion(c *gin.Context) {
	v, err := h.services.Versions.CreateVersion(c.Request.Context(), actorFrom(c), c.Param("quoteNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, v)
}

func (h *Handlers) GetActiveVersion(c *gin.Context) {
	v, err := h.services.Versions.GetActive(c.Request.Context(), c.Param("quoteNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, v)
}

func (h *Handlers) ActivateVersion(c *gin.Context) {
	var req struct {
		VersionNo int `json:"version_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	res, err := h.services.Versions.Activate(c.Request.Context(), actorFrom(c), c.Param("quoteNo"), req.VersionNo)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"version":     res.Version,
		"deactivated": res.Deactivated,
		"no_op":       res.NoOp,
	})
}

// Carriers

func (h *Handlers) CreateCarrierRule(c *gin.Context) {
	var rule entity.CarrierRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := h.services.Carriers.CreateRule(c.Request.Context(), &rule); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, rule)
}

// RecommendCarrier answers with the best matching rule, or null data when
// no enabled rule matches the address
func (h *Handlers) RecommendCarrier(c *gin.Context) {
	rule, err := h.services.Carriers.Recommend(c.Request.Context(), c.Query("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if rule == nil {
		c.JSON(http.StatusOK, Response{Success: true})
		return
	}
	respondOK(c, http.StatusOK, rule)
}
