package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/elim-assembly/attendance-api/internal/middleware"
	"github.com/elim-assembly/attendance-api/internal/models"
)

// actorFromContext resolves who is recording the operation. Requests
// without operator claims run as the system actor.
func actorFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.SystemActor
	}
	claims, ok := value.(*models.ActorClaims)
	if !ok {
		return models.SystemActor
	}
	return claims.Actor()
}
