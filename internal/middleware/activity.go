package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

// ActivityEntityKey lets handlers name the entity they created when the route has no :id.
const ActivityEntityKey = "activity_entity_id"

// ActivityRecorder accepts activity entries without blocking the request.
type ActivityRecorder interface {
	Record(entry models.ActivityLog)
}

// SetActivityEntity records the identifier of the entity touched by the current request.
func SetActivityEntity(c *gin.Context, id string) {
	if id != "" {
		c.Set(ActivityEntityKey, id)
	}
}

// Activity records an activity entry after every successful request on the route.
func Activity(recorder ActivityRecorder, action, entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := models.ActivityLog{
			Action:    action,
			Entity:    entity,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			CreatedAt: start,
		}
		if claims := ClaimsFromContext(c); claims != nil {
			userID := claims.UserID
			entry.UserID = &userID
		}
		if id := c.GetString(ActivityEntityKey); id != "" {
			entry.EntityID = &id
		} else if id := c.Param("id"); id != "" {
			entry.EntityID = &id
		}

		entry.Details, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		recorder.Record(entry)
	}
}
