package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/pkg/apperrors"
)

func newTestConsensusEngine(repo Repository, auditor AuditRecorder, now time.Time) *ConsensusEngine {
	engine := NewConsensusEngine(repo, auditor, zap.NewNop())
	engine.now = func() time.Time { return now }
	return engine
}

func votesOf(verificationID uuid.UUID, decisions ...Decision) []*ValidatorVote {
	votes := make([]*ValidatorVote, 0, len(decisions))
	for _, decision := range decisions {
		votes = append(votes, &ValidatorVote{
			VerificationID: verificationID,
			ValidatorID:    uuid.New(),
			Vote:           decision,
		})
	}
	return votes
}

func TestComputeStatusQuorumRule(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		required    int
		approvals   int
		rejections  int
		abstentions int
		reached     bool
		decision    FinalDecision
		progress    int
	}{
		{name: "three approvals of five reach quorum", total: 5, required: 3, approvals: 3, reached: true, decision: FinalApproved, progress: 60},
		{name: "three rejections of five make approval unreachable", total: 5, required: 3, rejections: 3, reached: true, decision: FinalRejected, progress: 60},
		{name: "two approvals one rejection stays open", total: 5, required: 3, approvals: 2, rejections: 1, decision: FinalPending, progress: 60},
		{name: "two rejections of five stays open", total: 5, required: 3, rejections: 2, decision: FinalPending, progress: 40},
		{name: "abstentions advance progress without resolving", total: 5, required: 3, approvals: 1, abstentions: 4, decision: FinalPending, progress: 100},
		{name: "one approval four abstentions cannot approve", total: 5, required: 3, approvals: 1, abstentions: 4, decision: FinalPending, progress: 100},
		{name: "unanimous committee of three", total: 3, required: 3, approvals: 3, reached: true, decision: FinalApproved, progress: 100},
		{name: "unassigned request never resolves", total: 0, required: 3, decision: FinalPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := computeStatus(tt.total, tt.required, tt.approvals, tt.rejections, tt.abstentions)
			assert.Equal(t, tt.reached, status.ConsensusReached)
			assert.Equal(t, tt.decision, status.FinalDecision)
			assert.Equal(t, tt.progress, status.Progress)
		})
	}
}

func TestCastVoteReachesQuorum(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	auditor := &recordingAuditor{}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine := newTestConsensusEngine(mockRepo, auditor, now)

	ctx := context.Background()
	verificationID := uuid.New()
	validatorID := uuid.New()
	deadline := now.Add(24 * time.Hour)
	request := &VerificationRequest{
		ID:                verificationID,
		Status:            StatusInReview,
		RequiredApprovals: 3,
		VotingDeadline:    &deadline,
	}

	mockRepo.On("GetRequest", ctx, verificationID).Return(request, nil)
	mockRepo.On("GetAssignment", ctx, verificationID, validatorID).Return(&ValidatorAssignment{
		VerificationID: verificationID,
		ValidatorID:    validatorID,
	}, nil)
	mockRepo.On("UpsertVote", ctx, mock.AnythingOfType("*verification.ValidatorVote")).Return(nil)
	mockRepo.On("CountAssignments", ctx, verificationID).Return(5, nil)
	mockRepo.On("ListVotes", ctx, verificationID).
		Return(votesOf(verificationID, DecisionApprove, DecisionApprove, DecisionApprove), nil)

	var persisted *VerificationRequest
	mockRepo.On("UpdateRequest", ctx, mock.AnythingOfType("*verification.VerificationRequest")).
		Run(func(args mock.Arguments) { persisted = args.Get(1).(*VerificationRequest) }).
		Return(nil)

	status, err := engine.CastVote(ctx, verificationID, validatorID, DecisionApprove, "evidence checks out", "")

	require.NoError(t, err)
	assert.True(t, status.ConsensusReached)
	assert.Equal(t, FinalApproved, status.FinalDecision)
	assert.Equal(t, 3, status.Approvals)

	require.NotNil(t, persisted)
	assert.Equal(t, StatusApproved, persisted.Status)
	assert.Equal(t, 3, persisted.ApprovalCount)
	assert.Equal(t, 3, persisted.VoteCount)
	require.NotNil(t, persisted.ConsensusReachedAt)
	assert.Equal(t, now, *persisted.ConsensusReachedAt)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.EventVoteCast, auditor.events[0].EventType)
	assert.Equal(t, validatorID.String(), auditor.events[0].ActorID)
	mockRepo.AssertExpectations(t)
}

func TestCastVoteFillsInDigestProof(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, now)

	ctx := context.Background()
	verificationID := uuid.New()
	validatorID := uuid.New()
	deadline := now.Add(time.Hour)
	request := &VerificationRequest{ID: verificationID, Status: StatusInReview, RequiredApprovals: 3, VotingDeadline: &deadline}

	mockRepo.On("GetRequest", ctx, verificationID).Return(request, nil)
	mockRepo.On("GetAssignment", ctx, verificationID, validatorID).Return(&ValidatorAssignment{}, nil)

	var stored *ValidatorVote
	mockRepo.On("UpsertVote", ctx, mock.AnythingOfType("*verification.ValidatorVote")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*ValidatorVote) }).
		Return(nil)
	mockRepo.On("CountAssignments", ctx, verificationID).Return(5, nil)
	mockRepo.On("ListVotes", ctx, verificationID).Return(votesOf(verificationID, DecisionReject), nil)
	mockRepo.On("UpdateRequest", ctx, mock.Anything).Return(nil)

	_, err := engine.CastVote(ctx, verificationID, validatorID, DecisionReject, "numbers do not add up", "")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, VoteDigest(verificationID, validatorID, DecisionReject, "numbers do not add up"), stored.Proof)
	assert.False(t, stored.SystemGenerated)
	assert.Equal(t, now, stored.VotedAt)
}

func TestCastVoteAfterDeadlineFails(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, now)

	ctx := context.Background()
	verificationID := uuid.New()
	validatorID := uuid.New()
	deadline := now.Add(-time.Minute)
	request := &VerificationRequest{ID: verificationID, Status: StatusInReview, RequiredApprovals: 3, VotingDeadline: &deadline}

	mockRepo.On("GetRequest", ctx, verificationID).Return(request, nil)
	mockRepo.On("GetAssignment", ctx, verificationID, validatorID).Return(&ValidatorAssignment{}, nil)

	_, err := engine.CastVote(ctx, verificationID, validatorID, DecisionApprove, "", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindDeadlineExpired, apperrors.KindOf(err))
	mockRepo.AssertNotCalled(t, "UpsertVote", mock.Anything, mock.Anything)
}

func TestCastVoteByUnassignedValidatorFails(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, now)

	ctx := context.Background()
	verificationID := uuid.New()
	validatorID := uuid.New()
	deadline := now.Add(time.Hour)
	request := &VerificationRequest{ID: verificationID, Status: StatusInReview, RequiredApprovals: 3, VotingDeadline: &deadline}

	mockRepo.On("GetRequest", ctx, verificationID).Return(request, nil)
	mockRepo.On("GetAssignment", ctx, verificationID, validatorID).Return(nil, nil)

	_, err := engine.CastVote(ctx, verificationID, validatorID, DecisionApprove, "", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	mockRepo.AssertNotCalled(t, "UpsertVote", mock.Anything, mock.Anything)
}

func TestCastVoteOnResolvedRequestFails(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, time.Now())

	ctx := context.Background()
	verificationID := uuid.New()
	mockRepo.On("GetRequest", ctx, verificationID).Return(&VerificationRequest{
		ID:     verificationID,
		Status: StatusApproved,
	}, nil)

	_, err := engine.CastVote(ctx, verificationID, uuid.New(), DecisionReject, "", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestCastVoteRejectsUnknownDecision(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, time.Now())

	_, err := engine.CastVote(context.Background(), uuid.New(), uuid.New(), Decision("maybe"), "", "")

	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	mockRepo.AssertNotCalled(t, "GetRequest", mock.Anything, mock.Anything)
}

func TestGetConsensusStatus(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	engine := newTestConsensusEngine(mockRepo, &recordingAuditor{}, time.Now())

	ctx := context.Background()
	verificationID := uuid.New()
	mockRepo.On("GetRequest", ctx, verificationID).Return(&VerificationRequest{
		ID:                verificationID,
		Status:            StatusInReview,
		RequiredApprovals: 3,
	}, nil)
	mockRepo.On("CountAssignments", ctx, verificationID).Return(5, nil)
	mockRepo.On("ListVotes", ctx, verificationID).
		Return(votesOf(verificationID, DecisionApprove, DecisionApprove, DecisionReject), nil)

	status, err := engine.GetConsensusStatus(ctx, verificationID)

	require.NoError(t, err)
	assert.Equal(t, 5, status.TotalValidators)
	assert.Equal(t, 2, status.Approvals)
	assert.Equal(t, 1, status.Rejections)
	assert.False(t, status.ConsensusReached)
	assert.Equal(t, FinalPending, status.FinalDecision)
	assert.Equal(t, 60, status.Progress)
	mockRepo.AssertNotCalled(t, "UpdateRequest", mock.Anything, mock.Anything)
}
