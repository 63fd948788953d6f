package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/pkg/apperrors"
)

// ConsensusStatus is the live tally of a verification request.
type ConsensusStatus struct {
	TotalValidators   int           `json:"total_validators"`
	RequiredApprovals int           `json:"required_approvals"`
	Approvals         int           `json:"approvals"`
	Rejections        int           `json:"rejections"`
	Abstentions       int           `json:"abstentions"`
	ConsensusReached  bool          `json:"consensus_reached"`
	FinalDecision     FinalDecision `json:"final_decision"`
	Progress          int           `json:"progress"`
}

// ConsensusEngine tallies votes and resolves verification requests.
type ConsensusEngine struct {
	repo    Repository
	auditor AuditRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewConsensusEngine(repo Repository, auditor AuditRecorder, logger *zap.Logger) *ConsensusEngine {
	return &ConsensusEngine{
		repo:    repo,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// CastVote records or updates a validator's vote. The deadline is
// checked at cast time, independent of the auto-abstain sweep.
func (e *ConsensusEngine) CastVote(ctx context.Context, verificationID, validatorID uuid.UUID, decision Decision, notes, proof string) (*ConsensusStatus, error) {
	switch decision {
	case DecisionApprove, DecisionReject, DecisionAbstain:
	default:
		return nil, apperrors.InvalidState("unknown vote decision %q", decision)
	}

	request, err := e.repo.GetRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("verification request %s not found", verificationID)
	}
	if request.Status != StatusInReview {
		return nil, apperrors.InvalidState("verification request is %s, voting is closed", request.Status)
	}

	assignment, err := e.repo.GetAssignment(ctx, verificationID, validatorID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, apperrors.Unauthorized("validator is not assigned to this verification")
	}

	now := e.now()
	if request.VotingDeadline != nil && now.After(*request.VotingDeadline) {
		return nil, apperrors.DeadlineExpired("the voting window closed at %s", request.VotingDeadline.Format(time.RFC3339))
	}

	if proof == "" {
		proof = VoteDigest(verificationID, validatorID, decision, notes)
	}
	vote := &ValidatorVote{
		VerificationID: verificationID,
		ValidatorID:    validatorID,
		Vote:           decision,
		Notes:          notes,
		Proof:          proof,
		VotedAt:        now,
	}
	if err := e.repo.UpsertVote(ctx, vote); err != nil {
		return nil, err
	}

	status, updated, err := e.recompute(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := e.repo.UpdateRequest(ctx, updated); err != nil {
		return nil, err
	}

	e.auditor.Record(ctx, verificationID, audit.EventVoteCast,
		"validator vote recorded",
		validatorID.String(),
		map[string]interface{}{
			"decision":          string(decision),
			"consensus_reached": status.ConsensusReached,
			"final_decision":    string(status.FinalDecision),
		})

	e.logger.Info("vote cast",
		zap.String("verification_id", verificationID.String()),
		zap.String("validator_id", validatorID.String()),
		zap.String("decision", string(decision)),
		zap.Bool("consensus_reached", status.ConsensusReached))
	return status, nil
}

// GetConsensusStatus returns the current tally without mutating state.
func (e *ConsensusEngine) GetConsensusStatus(ctx context.Context, verificationID uuid.UUID) (*ConsensusStatus, error) {
	request, err := e.repo.GetRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("verification request %s not found", verificationID)
	}

	total, err := e.repo.CountAssignments(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	votes, err := e.repo.ListVotes(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	approvals, rejections, abstentions := tallyVotes(votes)
	status := computeStatus(total, request.RequiredApprovals, approvals, rejections, abstentions)
	return &status, nil
}

// recompute re-derives the aggregate counts from the full vote set (the
// tally is never incrementally patched) and applies a terminal status
// when a threshold is crossed. The caller persists the result.
func (e *ConsensusEngine) recompute(ctx context.Context, request *VerificationRequest) (*ConsensusStatus, *VerificationRequest, error) {
	total, err := e.repo.CountAssignments(ctx, request.ID)
	if err != nil {
		return nil, nil, err
	}
	votes, err := e.repo.ListVotes(ctx, request.ID)
	if err != nil {
		return nil, nil, err
	}

	approvals, rejections, abstentions := tallyVotes(votes)
	status := computeStatus(total, request.RequiredApprovals, approvals, rejections, abstentions)

	updated := request.WithTally(approvals, rejections, abstentions, total)
	if status.ConsensusReached && updated.Status == StatusInReview {
		switch status.FinalDecision {
		case FinalApproved:
			updated = updated.WithStatus(StatusApproved, e.now())
		case FinalRejected:
			updated = updated.WithStatus(StatusRejected, e.now())
		}
	}
	return &status, updated, nil
}

func tallyVotes(votes []*ValidatorVote) (approvals, rejections, abstentions int) {
	for _, vote := range votes {
		switch vote.Vote {
		case DecisionApprove:
			approvals++
		case DecisionReject:
			rejections++
		case DecisionAbstain:
			abstentions++
		}
	}
	return approvals, rejections, abstentions
}

// computeStatus applies the quorum rule: approved once approvals reach
// the threshold, rejected once approval has become mathematically
// unreachable. Abstentions resolve a validator without counting toward
// either threshold.
func computeStatus(total, required, approvals, rejections, abstentions int) ConsensusStatus {
	status := ConsensusStatus{
		TotalValidators:   total,
		RequiredApprovals: required,
		Approvals:         approvals,
		Rejections:        rejections,
		Abstentions:       abstentions,
		FinalDecision:     FinalPending,
	}
	// An unassigned request (total == 0) can never resolve.
	switch {
	case total == 0:
	case approvals >= required:
		status.ConsensusReached = true
		status.FinalDecision = FinalApproved
	case rejections > total-required:
		status.ConsensusReached = true
		status.FinalDecision = FinalRejected
	}
	if total > 0 {
		status.Progress = (approvals + rejections + abstentions) * 100 / total
	}
	return status
}
