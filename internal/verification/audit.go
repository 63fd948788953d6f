package verification

import (
	"context"

	"github.com/google/uuid"
)

// AuditRecorder is the event sink the verification engines write to.
// Implementations are fire-and-forget; Record never returns an error.
type AuditRecorder interface {
	Record(ctx context.Context, verificationID uuid.UUID, eventType, message, actorID string, metadata map[string]interface{})
}
