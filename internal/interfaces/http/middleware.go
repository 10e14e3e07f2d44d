package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/doc-lifecycle/internal/application/service"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// Headers carrying the caller identity. Authentication happens in front of
// this service; these are trusted as given.
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorRoles = "X-Actor-Roles"

	actorKey = "actor"
)

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// actorMiddleware resolves the caller into an actor. A request without an
// actor id runs as the anonymous actor 0, which holds no capabilities.
func actorMiddleware(resolver service.ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID int64
		if raw := strings.TrimSpace(c.GetHeader(HeaderActorID)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id < 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, Response{
					Success: false,
					Error:   "invalid " + HeaderActorID + " header",
				})
				return
			}
			userID = id
		}

		actor, err := resolver.Resolve(c.Request.Context(), userID, splitRoles(c.GetHeader(HeaderActorRoles)))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func splitRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func actorFrom(c *gin.Context) *entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(*entity.Actor); ok {
			return actor
		}
	}
	return entity.NewActor(0, nil)
}
