// Package service holds the application's business rules. Handlers call
// services; services validate input, authorize rows and call repositories.
package service

import (
	"context"
	"log/slog"

	"kinship/internal/middleware"
	"kinship/internal/models"
	"kinship/internal/policy"

	"github.com/google/uuid"
)

// Publisher delivers realtime events to an account.
type Publisher interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, data any) error
}

// invalid turns a validation failure into a VALIDATION_ERROR.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return models.NewValidationError(err.Error())
}

func requireMember(requester uuid.UUID) error {
	if requester == policy.Anonymous {
		return models.NewUnauthorizedError("Authorization required")
	}
	return nil
}

// publish is best effort; a lost notification never fails the request.
func publish(ctx context.Context, p Publisher, userID uuid.UUID, eventType string, data any) {
	if p == nil {
		return
	}
	if err := p.Notify(ctx, userID, eventType, data); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish notification",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}
