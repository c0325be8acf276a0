// Package handlers exposes the ledger services over HTTP.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/middleware"
	"github.com/jakob/backend/internal/models"
)

// actorFrom returns the session Actor. Routes using it sit behind
// RequireSession, so a missing actor is a wiring bug reported as 401.
func actorFrom(c *gin.Context) (models.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return models.Actor{}, apperr.Unauthenticated("Authentication required")
	}
	return actor, nil
}

// queryInt reads an optional positive integer query parameter
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.ValidationFields("invalid query parameter", map[string]string{name: "must be a positive integer"})
	}
	return n, nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.ValidationFields("invalid "+field, map[string]string{field: "must be a valid id"})
	}
	return id, nil
}
