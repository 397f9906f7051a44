package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/dissertation-api/internal/models"
	"github.com/campushub/dissertation-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// NewAuditQueue builds the background queue that persists audit log entries
// off the request path.
func NewAuditQueue(repo auditLogWriter, cfg jobs.QueueConfig) *jobs.Queue {
	return jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload type %T", job.Payload)
		}
		return repo.CreateAuditLog(ctx, entry)
	}, cfg)
}

// Audit records an audit trail entry for successful requests by enqueueing it
// onto the audit queue.
func Audit(queue *jobs.Queue, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		entry := &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}

		if err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: entry}); err != nil {
			logger.Warn("failed to enqueue audit log", zap.String("resource", resource), zap.Error(err))
		}
	}
}
