package server

import (
	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/policy"
	"kinship/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit   = 20
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseUUID reads a route parameter as a UUID.
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, models.NewValidationError("Invalid " + param)
	}
	return id, nil
}

// requester is the signed-in account, or policy.Anonymous.
func requester(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(middleware.LocalUserID).(uuid.UUID); ok {
		return id
	}
	return policy.Anonymous
}

func currentSession(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(middleware.LocalSession).(*session.Session)
	return sess
}

// bind parses the request body into dst.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}
