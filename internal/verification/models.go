package verification

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Status of a verification request
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision cast by a validator
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionAbstain Decision = "abstain"
)

// FinalDecision reported by the consensus engine
type FinalDecision string

const (
	FinalApproved FinalDecision = "approved"
	FinalRejected FinalDecision = "rejected"
	FinalPending  FinalDecision = "pending"
)

// VerificationRequest is one project's emissions claim under committee
// review.
type VerificationRequest struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	DeveloperID        uuid.UUID  `gorm:"type:uuid;not null" json:"developer_id"`
	Status             Status     `gorm:"not null;default:'pending'" json:"status"`
	Progress           int        `gorm:"not null;default:0" json:"progress"` // resolved validators, percent
	RequiredApprovals  int        `gorm:"not null;default:3" json:"required_approvals"`
	ApprovalCount      int        `gorm:"not null;default:0" json:"approval_count"`
	RejectionCount     int        `gorm:"not null;default:0" json:"rejection_count"`
	VoteCount          int        `gorm:"not null;default:0" json:"vote_count"` // approvals + rejections, abstentions excluded
	VotingDeadline     *time.Time `json:"voting_deadline,omitempty"`
	DeadlineExtended   bool       `gorm:"not null;default:false" json:"deadline_extended"`
	OriginalDeadline   *time.Time `json:"original_deadline,omitempty"`
	ConsensusReachedAt *time.Time `json:"consensus_reached_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// WithTally returns a copy with recomputed vote aggregates.
func (r *VerificationRequest) WithTally(approvals, rejections, abstentions, totalAssigned int) *VerificationRequest {
	next := *r
	next.ApprovalCount = approvals
	next.RejectionCount = rejections
	next.VoteCount = approvals + rejections
	next.Progress = 0
	if totalAssigned > 0 {
		next.Progress = (approvals + rejections + abstentions) * 100 / totalAssigned
	}
	return &next
}

// WithStatus returns a copy moved to the given status, stamping the
// consensus time for terminal outcomes.
func (r *VerificationRequest) WithStatus(status Status, at time.Time) *VerificationRequest {
	next := *r
	next.Status = status
	if status == StatusApproved || status == StatusRejected {
		reached := at
		next.ConsensusReachedAt = &reached
	}
	return &next
}

// WithDeadline returns a copy carrying the initial voting deadline.
func (r *VerificationRequest) WithDeadline(deadline time.Time) *VerificationRequest {
	next := *r
	next.VotingDeadline = &deadline
	return &next
}

// WithExtendedDeadline returns a copy with the deadline advanced. The
// pre-extension deadline is snapshotted exactly once; later extensions
// keep the original.
func (r *VerificationRequest) WithExtendedDeadline(newDeadline time.Time) *VerificationRequest {
	next := *r
	if !next.DeadlineExtended && next.OriginalDeadline == nil && next.VotingDeadline != nil {
		original := *next.VotingDeadline
		next.OriginalDeadline = &original
	}
	next.VotingDeadline = &newDeadline
	next.DeadlineExtended = true
	return &next
}

// ValidatorAssignment links one validator to one verification request.
// Assignments are created once and never reused across requests.
type ValidatorAssignment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VerificationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_pair" json:"verification_id"`
	ValidatorID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_pair" json:"validator_id"`
	AssignedBy     string    `gorm:"not null" json:"assigned_by"` // user UUID or "system"
	CreatedAt      time.Time `json:"created_at"`
}

// ValidatorVote is one validator's vote on one request. The unique
// (verification_id, validator_id) pair plus upsert semantics keep the
// consensus tally a plain count.
type ValidatorVote struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	VerificationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vote_pair" json:"verification_id"`
	ValidatorID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_vote_pair" json:"validator_id"`
	Vote            Decision  `gorm:"not null" json:"vote"`
	Notes           string    `json:"notes"`
	Proof           string    `json:"proof"` // authenticity digest or caller-provided signature
	SystemGenerated bool      `gorm:"not null;default:false" json:"system_generated"`
	VotedAt         time.Time `json:"voted_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VoteDigest computes the tamper-evidence hash stored with votes that
// arrive without a caller-provided proof.
func VoteDigest(verificationID, validatorID uuid.UUID, decision Decision, notes string) string {
	h := sha3.New256()
	h.Write(verificationID[:])
	h.Write(validatorID[:])
	h.Write([]byte(decision))
	h.Write([]byte(notes))
	return hex.EncodeToString(h.Sum(nil))
}
