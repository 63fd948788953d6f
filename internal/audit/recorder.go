package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder persists audit events. It is fire-and-forget: a failed write
// is logged but never propagated to the operation that produced it.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record writes one audit event. Metadata may be nil.
func (r *Recorder) Record(ctx context.Context, verificationID uuid.UUID, eventType, message, actorID string, metadata map[string]interface{}) {
	event := &Event{
		VerificationID: verificationID,
		EventType:      eventType,
		Message:        message,
		ActorID:        actorID,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			r.logger.Warn("failed to marshal audit metadata",
				zap.String("verification_id", verificationID.String()),
				zap.String("event_type", eventType),
				zap.Error(err))
		} else {
			event.Metadata = raw
		}
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.Warn("failed to record audit event",
			zap.String("verification_id", verificationID.String()),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// ListByVerification returns the audit trail for a verification request.
func (r *Recorder) ListByVerification(ctx context.Context, verificationID uuid.UUID) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("verification_id = ?", verificationID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
