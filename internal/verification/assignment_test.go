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
	"carbon-registry/registry-backend/internal/config"
	"carbon-registry/registry-backend/internal/users"
	"carbon-registry/registry-backend/pkg/apperrors"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) FindEligibleValidators(ctx context.Context, excludeIDs []uuid.UUID) ([]*users.User, error) {
	args := m.Called(ctx, excludeIDs)
	return args.Get(0).([]*users.User), args.Error(1)
}

func testConfig() config.VerificationConfig {
	return config.VerificationConfig{
		RequiredApprovals: 3,
		CommitteeSize:     5,
		VotingWindow:      4 * 24 * time.Hour,
		ExpiryPolicy:      config.ExpiryPolicyReject,
	}
}

func newTestAssignmentEngine(repo Repository, userRepo users.Repository, auditor AuditRecorder, now time.Time) *AssignmentEngine {
	engine := NewAssignmentEngine(repo, userRepo, nil, auditor, testConfig(), zap.NewNop())
	engine.now = func() time.Time { return now }
	return engine
}

func validatorPool(n int) []*users.User {
	pool := make([]*users.User, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, &users.User{ID: uuid.New(), Role: users.RoleValidator, Verified: true})
	}
	return pool
}

func TestSelectCommitteeFiltersIneligible(t *testing.T) {
	engine := newTestAssignmentEngine(new(MockVerificationRepository), new(MockUserRepository), &recordingAuditor{}, time.Now())

	excluded := &users.User{ID: uuid.New(), Role: users.RoleValidator, Verified: true}
	unverified := &users.User{ID: uuid.New(), Role: users.RoleValidator, Verified: false}
	developer := &users.User{ID: uuid.New(), Role: users.RoleDeveloper, Verified: true}
	pool := append(validatorPool(4), excluded, unverified, developer)

	committee := engine.SelectCommittee(pool, 10, []uuid.UUID{excluded.ID})

	assert.Len(t, committee, 4)
	for _, member := range committee {
		assert.True(t, member.CanValidate())
		assert.NotEqual(t, excluded.ID, member.ID)
		assert.NotEqual(t, unverified.ID, member.ID)
		assert.NotEqual(t, developer.ID, member.ID)
	}
}

func TestSelectCommitteeTakesRequestedSize(t *testing.T) {
	engine := newTestAssignmentEngine(new(MockVerificationRepository), new(MockUserRepository), &recordingAuditor{}, time.Now())
	pool := validatorPool(20)

	committee := engine.SelectCommittee(pool, 5, nil)

	assert.Len(t, committee, 5)
	seen := make(map[uuid.UUID]bool, len(committee))
	for _, member := range committee {
		assert.False(t, seen[member.ID], "committee must not repeat validators")
		seen[member.ID] = true
	}
}

func TestSelectCommitteeShortPoolReturnsEveryone(t *testing.T) {
	engine := newTestAssignmentEngine(new(MockVerificationRepository), new(MockUserRepository), &recordingAuditor{}, time.Now())

	committee := engine.SelectCommittee(validatorPool(2), 5, nil)

	assert.Len(t, committee, 2)
}

func TestAutoAssignValidators(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	mockUsers := new(MockUserRepository)
	auditor := &recordingAuditor{}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	engine := newTestAssignmentEngine(mockRepo, mockUsers, auditor, now)

	ctx := context.Background()
	verificationID := uuid.New()
	developerID := uuid.New()
	request := &VerificationRequest{ID: verificationID, Status: StatusPending, RequiredApprovals: 3}

	mockRepo.On("GetRequest", ctx, verificationID).Return(request, nil)
	mockUsers.On("FindEligibleValidators", ctx, []uuid.UUID{developerID}).Return(validatorPool(8), nil)

	var assignments []*ValidatorAssignment
	mockRepo.On("CreateAssignments", ctx, mock.AnythingOfType("[]*verification.ValidatorAssignment")).
		Run(func(args mock.Arguments) { assignments = args.Get(1).([]*ValidatorAssignment) }).
		Return(nil)

	var persisted *VerificationRequest
	mockRepo.On("UpdateRequest", ctx, mock.AnythingOfType("*verification.VerificationRequest")).
		Run(func(args mock.Arguments) { persisted = args.Get(1).(*VerificationRequest) }).
		Return(nil)

	err := engine.AutoAssignValidators(ctx, verificationID, developerID, 3, 5)

	require.NoError(t, err)
	require.Len(t, assignments, 5)
	for _, assignment := range assignments {
		assert.Equal(t, verificationID, assignment.VerificationID)
		assert.Equal(t, audit.ActorSystem, assignment.AssignedBy)
	}

	require.NotNil(t, persisted)
	assert.Equal(t, StatusInReview, persisted.Status)
	assert.Equal(t, 3, persisted.RequiredApprovals)
	require.NotNil(t, persisted.VotingDeadline)
	assert.Equal(t, now.Add(4*24*time.Hour), *persisted.VotingDeadline)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.EventValidatorsAssigned, auditor.events[0].EventType)
	assert.Equal(t, audit.ActorSystem, auditor.events[0].ActorID)
	assert.Equal(t, true, auditor.events[0].Metadata["automatic"])
	mockRepo.AssertExpectations(t)
}

func TestAutoAssignFailsWithTooFewValidators(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	mockUsers := new(MockUserRepository)
	engine := newTestAssignmentEngine(mockRepo, mockUsers, &recordingAuditor{}, time.Now())

	ctx := context.Background()
	verificationID := uuid.New()
	developerID := uuid.New()

	mockRepo.On("GetRequest", ctx, verificationID).Return(&VerificationRequest{
		ID: verificationID, Status: StatusPending, RequiredApprovals: 3,
	}, nil)
	mockUsers.On("FindEligibleValidators", ctx, []uuid.UUID{developerID}).Return(validatorPool(2), nil)

	err := engine.AutoAssignValidators(ctx, verificationID, developerID, 3, 5)

	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientValidators, apperrors.KindOf(err))
	// Nothing may be persisted when the committee cannot be formed.
	mockRepo.AssertNotCalled(t, "CreateAssignments", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdateRequest", mock.Anything, mock.Anything)
}

func TestAutoAssignOnNonPendingRequestFails(t *testing.T) {
	mockRepo := new(MockVerificationRepository)
	mockUsers := new(MockUserRepository)
	engine := newTestAssignmentEngine(mockRepo, mockUsers, &recordingAuditor{}, time.Now())

	ctx := context.Background()
	verificationID := uuid.New()
	mockRepo.On("GetRequest", ctx, verificationID).Return(&VerificationRequest{
		ID: verificationID, Status: StatusInReview, RequiredApprovals: 3,
	}, nil)

	err := engine.AutoAssignValidators(ctx, verificationID, uuid.New(), 3, 5)

	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	mockUsers.AssertNotCalled(t, "FindEligibleValidators", mock.Anything, mock.Anything)
}
