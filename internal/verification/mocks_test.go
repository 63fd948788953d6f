package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockVerificationRepository is a mock implementation of the Repository
// interface, shared by the engine tests in this package.
type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) CreateRequest(ctx context.Context, request *VerificationRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockVerificationRepository) GetRequest(ctx context.Context, id uuid.UUID) (*VerificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VerificationRequest), args.Error(1)
}

func (m *MockVerificationRepository) UpdateRequest(ctx context.Context, request *VerificationRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockVerificationRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*VerificationRequest, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]*VerificationRequest), args.Error(1)
}

func (m *MockVerificationRepository) CreateAssignments(ctx context.Context, assignments []*ValidatorAssignment) error {
	args := m.Called(ctx, assignments)
	return args.Error(0)
}

func (m *MockVerificationRepository) ListAssignments(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorAssignment, error) {
	args := m.Called(ctx, verificationID)
	return args.Get(0).([]*ValidatorAssignment), args.Error(1)
}

func (m *MockVerificationRepository) GetAssignment(ctx context.Context, verificationID, validatorID uuid.UUID) (*ValidatorAssignment, error) {
	args := m.Called(ctx, verificationID, validatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ValidatorAssignment), args.Error(1)
}

func (m *MockVerificationRepository) CountAssignments(ctx context.Context, verificationID uuid.UUID) (int, error) {
	args := m.Called(ctx, verificationID)
	return args.Int(0), args.Error(1)
}

func (m *MockVerificationRepository) UpsertVote(ctx context.Context, vote *ValidatorVote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockVerificationRepository) InsertVoteIfMissing(ctx context.Context, vote *ValidatorVote) (bool, error) {
	args := m.Called(ctx, vote)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationRepository) ListVotes(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorVote, error) {
	args := m.Called(ctx, verificationID)
	return args.Get(0).([]*ValidatorVote), args.Error(1)
}

// recordedEvent is one call captured by the recordingAuditor.
type recordedEvent struct {
	VerificationID uuid.UUID
	EventType      string
	Message        string
	ActorID        string
	Metadata       map[string]interface{}
}

// recordingAuditor is an in-memory AuditRecorder spy.
type recordingAuditor struct {
	events []recordedEvent
}

func (r *recordingAuditor) Record(ctx context.Context, verificationID uuid.UUID, eventType, message, actorID string, metadata map[string]interface{}) {
	r.events = append(r.events, recordedEvent{
		VerificationID: verificationID,
		EventType:      eventType,
		Message:        message,
		ActorID:        actorID,
		Metadata:       metadata,
	})
}

func (r *recordingAuditor) eventTypes() []string {
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}
