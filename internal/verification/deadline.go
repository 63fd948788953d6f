package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/internal/config"
	"carbon-registry/registry-backend/pkg/apperrors"
)

// SweepResult summarizes one run of the expired-deadline scan.
type SweepResult struct {
	RequestsProcessed   int `json:"requests_processed"`
	ValidatorsAbstained int `json:"validators_abstained"`
	Failures            int `json:"failures"`
}

// DeadlineScheduler resolves verification requests whose voting window
// has elapsed. It holds no timer of its own; an external trigger calls
// ProcessExpiredDeadlines on a fixed schedule.
type DeadlineScheduler struct {
	repo      Repository
	consensus *ConsensusEngine
	auditor   AuditRecorder
	cfg       config.VerificationConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewDeadlineScheduler(
	repo Repository,
	consensus *ConsensusEngine,
	auditor AuditRecorder,
	cfg config.VerificationConfig,
	logger *zap.Logger,
) *DeadlineScheduler {
	return &DeadlineScheduler{
		repo:      repo,
		consensus: consensus,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessExpiredDeadlines auto-abstains validators who never voted on
// expired requests and records the outcome. A single request's failure
// is logged and skipped, never propagated: the scan always finishes.
func (s *DeadlineScheduler) ProcessExpiredDeadlines(ctx context.Context) (*SweepResult, error) {
	expired, err := s.repo.ListExpired(ctx, s.now())
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, request := range expired {
		abstained, err := s.processOne(ctx, request)
		if err != nil {
			result.Failures++
			s.logger.Error("failed to process expired verification",
				zap.String("verification_id", request.ID.String()),
				zap.Error(err))
			continue
		}
		result.RequestsProcessed++
		result.ValidatorsAbstained += abstained
	}

	s.logger.Info("deadline sweep finished",
		zap.Int("requests_processed", result.RequestsProcessed),
		zap.Int("validators_abstained", result.ValidatorsAbstained),
		zap.Int("failures", result.Failures))
	return result, nil
}

func (s *DeadlineScheduler) processOne(ctx context.Context, request *VerificationRequest) (int, error) {
	assignments, err := s.repo.ListAssignments(ctx, request.ID)
	if err != nil {
		return 0, err
	}
	votes, err := s.repo.ListVotes(ctx, request.ID)
	if err != nil {
		return 0, err
	}
	voted := make(map[uuid.UUID]bool, len(votes))
	for _, vote := range votes {
		voted[vote.ValidatorID] = true
	}

	now := s.now()
	abstained := 0
	for _, assignment := range assignments {
		if voted[assignment.ValidatorID] {
			continue
		}
		// Conflict-ignoring insert: a vote cast between the listing
		// above and this write wins, and re-runs add nothing.
		inserted, err := s.repo.InsertVoteIfMissing(ctx, &ValidatorVote{
			VerificationID:  request.ID,
			ValidatorID:     assignment.ValidatorID,
			Vote:            DecisionAbstain,
			Notes:           "auto-abstained at voting deadline",
			Proof:           VoteDigest(request.ID, assignment.ValidatorID, DecisionAbstain, ""),
			SystemGenerated: true,
			VotedAt:         now,
		})
		if err != nil {
			return abstained, err
		}
		if inserted {
			abstained++
		}
	}

	status, updated, err := s.consensus.recompute(ctx, request)
	if err != nil {
		return abstained, err
	}
	if !status.ConsensusReached && updated.Status == StatusInReview && s.cfg.ExpiryPolicy == config.ExpiryPolicyReject {
		updated = updated.WithStatus(StatusRejected, now)
	}

	statusChanged := updated.Status != request.Status
	if abstained > 0 || statusChanged || updated.VoteCount != request.VoteCount {
		if err := s.repo.UpdateRequest(ctx, updated); err != nil {
			return abstained, err
		}
	}

	if abstained > 0 || statusChanged {
		s.auditor.Record(ctx, request.ID, audit.EventDeadlineExpired,
			"voting deadline expired",
			audit.ActorSystem,
			map[string]interface{}{
				"auto_abstained": abstained,
				"final_status":   string(updated.Status),
			})
	}
	return abstained, nil
}

// ExtendDeadline pushes the voting deadline forward. The first
// extension snapshots the original deadline; the snapshot is never
// overwritten by later extensions.
func (s *DeadlineScheduler) ExtendDeadline(ctx context.Context, verificationID uuid.UUID, extensionDays int, extendedBy string) (*VerificationRequest, error) {
	if extensionDays <= 0 {
		return nil, apperrors.InvalidQuantity("extension must be a positive number of days")
	}

	request, err := s.repo.GetRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("verification request %s not found", verificationID)
	}
	if request.Status != StatusInReview {
		return nil, apperrors.InvalidState("verification request is %s, only in-review deadlines can be extended", request.Status)
	}
	if request.VotingDeadline == nil {
		return nil, apperrors.NoDeadline("verification request has no voting deadline set")
	}

	oldDeadline := *request.VotingDeadline
	updated := request.WithExtendedDeadline(oldDeadline.AddDate(0, 0, extensionDays))
	if err := s.repo.UpdateRequest(ctx, updated); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, verificationID, audit.EventDeadlineExtended,
		"voting deadline extended",
		extendedBy,
		map[string]interface{}{
			"old_deadline":   oldDeadline,
			"new_deadline":   *updated.VotingDeadline,
			"extension_days": extensionDays,
		})

	s.logger.Info("deadline extended",
		zap.String("verification_id", verificationID.String()),
		zap.Int("extension_days", extensionDays),
		zap.String("extended_by", extendedBy))
	return updated, nil
}
