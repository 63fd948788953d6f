package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event types recorded by the verification engine
const (
	EventValidatorsAssigned = "validators_assigned"
	EventVoteCast           = "vote_cast"
	EventDeadlineExpired    = "deadline_expired"
	EventDeadlineExtended   = "deadline_extended"
)

// ActorSystem marks events generated without a human actor.
const ActorSystem = "system"

// Event is one audit trail entry for a verification request.
type Event struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VerificationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"verification_id"`
	EventType      string         `gorm:"not null" json:"event_type"`
	Message        string         `json:"message"`
	ActorID        string         `gorm:"not null" json:"actor_id"` // user UUID or "system"
	Metadata       datatypes.JSON `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}
