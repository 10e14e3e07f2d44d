package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func subjectParam(c *gin.Context) (entity.SubjectRef, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return entity.SubjectRef{}, false
	}
	return entity.SubjectRef{
		Type: entity.SubjectType(strings.ToUpper(c.Param("type"))),
		ID:   id,
	}, true
}

// ListHistory returns a subject's transitions, newest first
func (h *Handlers) ListHistory(c *gin.Context) {
	subject, ok := subjectParam(c)
	if !ok {
		return
	}
	records, err := h.services.History.List(c.Request.Context(), subject)
	h.respond(c, http.StatusOK, records, err)
}

// ExportHistory streams a subject's transitions as a spreadsheet. The
// document is buffered so a failed export still gets a JSON error.
func (h *Handlers) ExportHistory(c *gin.Context) {
	subject, ok := subjectParam(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.services.History.Export(c.Request.Context(), subject, &buf); err != nil {
		h.logger.Error("History export failed", "subject", subject.String(), "error", err)
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("%s-%d-history.xlsx", strings.ToLower(string(subject.Type)), subject.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// PermittedActions lists the actions the subject's current status allows
func (h *Handlers) PermittedActions(c *gin.Context) {
	subject, ok := subjectParam(c)
	if !ok {
		return
	}
	actions, err := h.services.Engine.PermittedActions(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"subject": subject, "actions": actions})
}
