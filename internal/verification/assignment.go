package verification

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/internal/config"
	"carbon-registry/registry-backend/internal/projects"
	"carbon-registry/registry-backend/internal/users"
	"carbon-registry/registry-backend/pkg/apperrors"
	"carbon-registry/registry-backend/pkg/workflows"
)

// AssignmentEngine selects validator committees and opens verification
// requests for review.
type AssignmentEngine struct {
	repo         Repository
	userRepo     users.Repository
	projectRepo  projects.Repository
	auditor      AuditRecorder
	cfg          config.VerificationConfig
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
	now          func() time.Time
}

func NewAssignmentEngine(
	repo Repository,
	userRepo users.Repository,
	projectRepo projects.Repository,
	auditor AuditRecorder,
	cfg config.VerificationConfig,
	logger *zap.Logger,
) *AssignmentEngine {
	return &AssignmentEngine{
		repo:         repo,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		auditor:      auditor,
		cfg:          cfg,
		stateMachine: workflows.NewProjectStateMachine(),
		logger:       logger,
		now:          time.Now,
	}
}

// SelectCommittee draws an unbiased random committee from the pool.
// Eligibility: validator or admin role, verified identity, not in
// excludeIDs. A pool shorter than count yields the whole eligible pool.
func (e *AssignmentEngine) SelectCommittee(pool []*users.User, count int, excludeIDs []uuid.UUID) []*users.User {
	excluded := make(map[uuid.UUID]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	eligible := make([]*users.User, 0, len(pool))
	for _, candidate := range pool {
		if candidate.CanValidate() && !excluded[candidate.ID] {
			eligible = append(eligible, candidate)
		}
	}

	// Uniform shuffle, take prefix: every eligible validator has equal
	// a priori chance regardless of past load.
	rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if count < len(eligible) {
		eligible = eligible[:count]
	}
	return eligible
}

// Submit opens a verification request for a project and auto-assigns
// its committee.
func (e *AssignmentEngine) Submit(ctx context.Context, projectID uuid.UUID) (*VerificationRequest, error) {
	project, err := e.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project %s not found", projectID)
	}

	request := &VerificationRequest{
		ProjectID:         project.ID,
		DeveloperID:       project.DeveloperID,
		Status:            StatusPending,
		RequiredApprovals: e.cfg.RequiredApprovals,
	}
	if err := e.repo.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	if err := e.AutoAssignValidators(ctx, request.ID, project.DeveloperID, e.cfg.RequiredApprovals, e.cfg.CommitteeSize); err != nil {
		return nil, err
	}

	if e.stateMachine.CanTransition(project.Status, projects.StatusUnderReview) {
		if err := e.projectRepo.UpdateStatus(ctx, project.ID, projects.StatusUnderReview); err != nil {
			e.logger.Warn("failed to move project under review",
				zap.String("project_id", project.ID.String()),
				zap.Error(err))
		}
	}

	return e.repo.GetRequest(ctx, request.ID)
}

// AutoAssignValidators draws the committee, persists the assignments
// all-or-nothing, and starts the voting window.
func (e *AssignmentEngine) AutoAssignValidators(ctx context.Context, verificationID, developerID uuid.UUID, requiredApprovals, validatorCount int) error {
	request, err := e.repo.GetRequest(ctx, verificationID)
	if err != nil {
		return err
	}
	if request == nil {
		return apperrors.NotFound("verification request %s not found", verificationID)
	}
	if request.Status != StatusPending {
		return apperrors.InvalidState("verification request is %s, validators can only be assigned while pending", request.Status)
	}
	if requiredApprovals <= 0 {
		requiredApprovals = e.cfg.RequiredApprovals
	}
	if validatorCount <= 0 {
		validatorCount = e.cfg.CommitteeSize
	}

	pool, err := e.userRepo.FindEligibleValidators(ctx, []uuid.UUID{developerID})
	if err != nil {
		return err
	}
	committee := e.SelectCommittee(pool, validatorCount, []uuid.UUID{developerID})
	if len(committee) < requiredApprovals {
		return apperrors.InsufficientValidators("only %d eligible validators available, %d approvals required", len(committee), requiredApprovals)
	}

	now := e.now()
	assignments := make([]*ValidatorAssignment, 0, len(committee))
	validatorIDs := make([]string, 0, len(committee))
	for _, validator := range committee {
		assignments = append(assignments, &ValidatorAssignment{
			VerificationID: verificationID,
			ValidatorID:    validator.ID,
			AssignedBy:     audit.ActorSystem,
		})
		validatorIDs = append(validatorIDs, validator.ID.String())
	}
	if err := e.repo.CreateAssignments(ctx, assignments); err != nil {
		return err
	}

	deadline := now.Add(e.cfg.VotingWindow)
	updated := request.WithDeadline(deadline)
	updated.RequiredApprovals = requiredApprovals
	updated.Status = StatusInReview
	if err := e.repo.UpdateRequest(ctx, updated); err != nil {
		return err
	}

	e.auditor.Record(ctx, verificationID, audit.EventValidatorsAssigned,
		"validator committee assigned automatically",
		audit.ActorSystem,
		map[string]interface{}{
			"validator_ids":      validatorIDs,
			"required_approvals": requiredApprovals,
			"voting_deadline":    deadline,
			"automatic":          true,
		})

	e.logger.Info("validators assigned",
		zap.String("verification_id", verificationID.String()),
		zap.Int("committee_size", len(committee)),
		zap.Int("required_approvals", requiredApprovals))
	return nil
}
