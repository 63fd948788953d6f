package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	CreateRequest(ctx context.Context, request *VerificationRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*VerificationRequest, error)
	UpdateRequest(ctx context.Context, request *VerificationRequest) error
	ListExpired(ctx context.Context, asOf time.Time) ([]*VerificationRequest, error)

	CreateAssignments(ctx context.Context, assignments []*ValidatorAssignment) error
	ListAssignments(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorAssignment, error)
	GetAssignment(ctx context.Context, verificationID, validatorID uuid.UUID) (*ValidatorAssignment, error)
	CountAssignments(ctx context.Context, verificationID uuid.UUID) (int, error)

	UpsertVote(ctx context.Context, vote *ValidatorVote) error
	InsertVoteIfMissing(ctx context.Context, vote *ValidatorVote) (bool, error)
	ListVotes(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorVote, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateRequest(ctx context.Context, request *VerificationRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *gormRepository) GetRequest(ctx context.Context, id uuid.UUID) (*VerificationRequest, error) {
	var request VerificationRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *gormRepository) UpdateRequest(ctx context.Context, request *VerificationRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *gormRepository) ListExpired(ctx context.Context, asOf time.Time) ([]*VerificationRequest, error) {
	var requests []*VerificationRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND voting_deadline IS NOT NULL AND voting_deadline < ?", StatusInReview, asOf).
		Order("voting_deadline ASC").
		Find(&requests).Error
	return requests, err
}

// CreateAssignments persists the whole committee in one transaction;
// assignment is all-or-nothing per verification.
func (r *gormRepository) CreateAssignments(ctx context.Context, assignments []*ValidatorAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(assignments).Error
	})
}

func (r *gormRepository) ListAssignments(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorAssignment, error) {
	var assignments []*ValidatorAssignment
	err := r.db.WithContext(ctx).
		Where("verification_id = ?", verificationID).
		Find(&assignments).Error
	return assignments, err
}

func (r *gormRepository) GetAssignment(ctx context.Context, verificationID, validatorID uuid.UUID) (*ValidatorAssignment, error) {
	var assignment ValidatorAssignment
	err := r.db.WithContext(ctx).
		Where("verification_id = ? AND validator_id = ?", verificationID, validatorID).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *gormRepository) CountAssignments(ctx context.Context, verificationID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ValidatorAssignment{}).
		Where("verification_id = ?", verificationID).
		Count(&count).Error
	return int(count), err
}

// UpsertVote lets a validator change their vote before the deadline; the
// unique pair index turns the second write into an update.
func (r *gormRepository) UpsertVote(ctx context.Context, vote *ValidatorVote) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "verification_id"}, {Name: "validator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vote", "notes", "proof", "system_generated", "voted_at", "updated_at"}),
	}).Create(vote).Error
}

// InsertVoteIfMissing writes the vote only when the validator has none
// yet. Used by the auto-abstain sweep so re-runs stay idempotent and a
// concurrently cast real vote is never overwritten.
func (r *gormRepository) InsertVoteIfMissing(ctx context.Context, vote *ValidatorVote) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "verification_id"}, {Name: "validator_id"}},
		DoNothing: true,
	}).Create(vote)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListVotes(ctx context.Context, verificationID uuid.UUID) ([]*ValidatorVote, error) {
	var votes []*ValidatorVote
	err := r.db.WithContext(ctx).
		Where("verification_id = ?", verificationID).
		Find(&votes).Error
	return votes, err
}
