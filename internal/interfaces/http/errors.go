package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

var errBadID = errors.New("invalid id")

func statusFor(kind domainwf.Kind) int {
	switch kind {
	case domainwf.KindInvalidTransition, domainwf.KindPreconditionFailed:
		return http.StatusBadRequest
	case domainwf.KindUnauthorized:
		return http.StatusForbidden
	case domainwf.KindSubjectNotFound, domainwf.KindVersionNotFound:
		return http.StatusNotFound
	case domainwf.KindInvalidState:
		return http.StatusConflict
	case domainwf.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondError(c *gin.Context, err error) {
	kind := domainwf.KindOf(err)
	msg := err.Error()
	if kind == domainwf.KindInternal {
		msg = "internal error"
	}
	c.JSON(statusFor(kind), Response{Success: false, Error: msg, Kind: string(kind)})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// paramID parses a positive integer path parameter. On failure the 400 has
// already been written.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, errBadID)
		return 0, false
	}
	return id, true
}

// bind decodes an optional JSON body. An empty body leaves req untouched.
func bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, err)
		return false
	}
	return true
}
