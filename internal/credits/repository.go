package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListFilter enumerates every recognized credit listing option. It is
// validated at the API boundary before reaching the service.
type ListFilter struct {
	OwnerID   *uuid.UUID
	ProjectID *uuid.UUID
	Status    *CreditStatus
	Vintage   *int
	Limit     int
	Offset    int
	SortBy    string // issued_at, quantity, vintage, serial_number
	SortOrder string // asc, desc
}

// Validate checks limits and whitelists sort fields.
func (f *ListFilter) Validate() error {
	if f.Limit < 0 || f.Limit > 500 {
		return fmt.Errorf("limit must be between 0 and 500")
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	switch f.SortBy {
	case "", "issued_at", "quantity", "vintage", "serial_number":
	default:
		return fmt.Errorf("unsupported sort field %q", f.SortBy)
	}
	switch f.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("unsupported sort order %q", f.SortOrder)
	}
	return nil
}

// TransactionFilter narrows journal listings and exports.
type TransactionFilter struct {
	CreditEntryID *uuid.UUID
	Type          *TransactionType
	Status        *TransactionStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// Validate checks limits and the date window.
func (f *TransactionFilter) Validate() error {
	if f.Limit < 0 || f.Limit > 1000 {
		return fmt.Errorf("limit must be between 0 and 1000")
	}
	if f.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("date window end precedes start")
	}
	return nil
}

// Repository is the ledger's durable store. InTransaction opens a
// serializable unit of work; the repository handed to fn routes every
// call through that transaction, so GetByIDForUpdate takes a real
// row lock and all writes commit or roll back together.
type Repository interface {
	InTransaction(ctx context.Context, fn func(Repository) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*CreditEntry, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*CreditEntry, error)
	GetIssuedByProject(ctx context.Context, projectID uuid.UUID) (*CreditEntry, error)
	List(ctx context.Context, filter ListFilter) ([]*CreditEntry, error)
	Create(ctx context.Context, entry *CreditEntry) error
	Update(ctx context.Context, entry *CreditEntry) error
	NextCreditSequence(ctx context.Context, projectID uuid.UUID, vintage int) (int, error)

	CreateTransaction(ctx context.Context, txn *CreditTransaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*CreditTransaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InTransaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*CreditEntry, error) {
	var entry CreditEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByIDForUpdate acquires an exclusive row lock. Concurrent transfer
// and retirement attempts on the same entry queue here and apply in
// commit order.
func (r *gormRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*CreditEntry, error) {
	var entry CreditEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetIssuedByProject returns the entry created by issuance for the
// project, if any. Minted transfer entries carry a source reference and
// are excluded.
func (r *gormRepository) GetIssuedByProject(ctx context.Context, projectID uuid.UUID) (*CreditEntry, error) {
	var entry CreditEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND source_entry_id IS NULL", projectID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter) ([]*CreditEntry, error) {
	query := r.db.WithContext(ctx).Model(&CreditEntry{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Vintage != nil {
		query = query.Where("vintage = ?", *filter.Vintage)
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "issued_at"
	}
	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []*CreditEntry
	err := query.Find(&entries).Error
	return entries, err
}

func (r *gormRepository) Create(ctx context.Context, entry *CreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) Update(ctx context.Context, entry *CreditEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// NextCreditSequence returns the next per-project-per-vintage sequence
// used in serial numbers. The unique index on serial_number backstops
// any race between concurrent issuers.
func (r *gormRepository) NextCreditSequence(ctx context.Context, projectID uuid.UUID, vintage int) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CreditEntry{}).
		Where("project_id = ? AND vintage = ?", projectID, vintage).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

func (r *gormRepository) CreateTransaction(ctx context.Context, txn *CreditTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *gormRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*CreditTransaction, error) {
	query := r.db.WithContext(ctx).Model(&CreditTransaction{})
	if filter.CreditEntryID != nil {
		query = query.Where("credit_entry_id = ?", *filter.CreditEntryID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var txns []*CreditTransaction
	err := query.Find(&txns).Error
	return txns, err
}
