package credits

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-registry/registry-backend/internal/projects"
	"carbon-registry/registry-backend/internal/users"
	"carbon-registry/registry-backend/pkg/apperrors"
	"carbon-registry/registry-backend/pkg/workflows"
)

// Requests

type IssueRequest struct {
	ProjectID      uuid.UUID `json:"project_id"`
	VerificationID uuid.UUID `json:"verification_id"`
}

type TransferRequest struct {
	CreditID    uuid.UUID `json:"credit_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Quantity    float64   `json:"quantity"`
	// SettlementRef links the transfer to the external settlement
	// service's transaction, when one exists.
	SettlementRef string `json:"settlement_ref,omitempty"`
}

type RetireRequest struct {
	CreditID uuid.UUID `json:"credit_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Quantity float64   `json:"quantity"`
	Reason   string    `json:"reason"`
}

// TransferResult carries both sides of a completed transfer.
type TransferResult struct {
	Source *CreditEntry `json:"source"`
	Minted *CreditEntry `json:"minted"`
}

// Service interface
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*CreditEntry, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Retire(ctx context.Context, req RetireRequest) (*CreditEntry, error)
	GetCredit(ctx context.Context, id uuid.UUID) (*CreditEntry, error)
	ListCredits(ctx context.Context, filter ListFilter) ([]*CreditEntry, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*CreditTransaction, error)
}

// Implementation
type creditService struct {
	repo         Repository
	projectRepo  projects.Repository
	userRepo     users.Repository
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	repo Repository,
	projectRepo projects.Repository,
	userRepo users.Repository,
	logger *zap.Logger,
) Service {
	return &creditService{
		repo:         repo,
		projectRepo:  projectRepo,
		userRepo:     userRepo,
		stateMachine: workflows.NewCreditStateMachine(),
		logger:       logger,
		now:          time.Now,
	}
}

// Issue mints the single credit entry of a verified project. The
// quantity is the project's declared emissions target and the owner is
// the project developer.
func (s *creditService) Issue(ctx context.Context, req IssueRequest) (*CreditEntry, error) {
	project, err := s.projectRepo.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperrors.NotFound("project %s not found", req.ProjectID)
	}
	if project.Status != projects.StatusVerified {
		return nil, apperrors.InvalidState("project %s is %s, credits can only be issued for verified projects", project.ID, project.Status)
	}

	developer, err := s.userRepo.GetByID(ctx, project.DeveloperID)
	if err != nil {
		return nil, err
	}
	if developer == nil {
		return nil, apperrors.NotFound("developer %s not found", project.DeveloperID)
	}

	existing, err := s.repo.GetIssuedByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.AlreadyIssued("credits for project %s were already issued under serial %s", project.ID, existing.SerialNumber)
	}

	now := s.now()
	vintage := now.Year()

	var entry *CreditEntry
	err = s.repo.InTransaction(ctx, func(txRepo Repository) error {
		sequence, err := txRepo.NextCreditSequence(ctx, project.ID, vintage)
		if err != nil {
			return err
		}
		entry = &CreditEntry{
			SerialNumber: FormatSerialNumber(vintage, project.Sequence, sequence),
			ProjectID:    project.ID,
			OwnerID:      developer.ID,
			Quantity:     project.EmissionsTarget,
			Vintage:      vintage,
			Status:       StatusActive,
			IssuedAt:     now,
			LastActionAt: now,
		}
		if err := txRepo.Create(ctx, entry); err != nil {
			return err
		}
		return txRepo.CreateTransaction(ctx, s.completedTransaction(entry.ID, TransactionIssuance, nil, &developer.ID, entry.Quantity, map[string]interface{}{
			"verification_id": req.VerificationID.String(),
			"serial_number":   entry.SerialNumber,
		}))
	})
	if err != nil {
		s.recordFailedAttempt(ctx, nil, TransactionIssuance, nil, &project.DeveloperID, project.EmissionsTarget, err)
		return nil, err
	}

	s.logger.Info("credits issued",
		zap.String("project_id", project.ID.String()),
		zap.String("serial_number", entry.SerialNumber),
		zap.Float64("quantity", entry.Quantity))
	return entry, nil
}

// Transfer moves quantity from the sender's entry to a freshly minted
// entry for the recipient, all inside one serializable, row-locked unit
// of work.
func (s *creditService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	recipient, err := s.userRepo.GetByID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperrors.NotFound("recipient %s not found", req.RecipientID)
	}

	var result TransferResult
	err = s.repo.InTransaction(ctx, func(txRepo Repository) error {
		entry, err := txRepo.GetByIDForUpdate(ctx, req.CreditID)
		if err != nil {
			return err
		}
		if entry == nil {
			return apperrors.NotFound("credit %s not found", req.CreditID)
		}
		if entry.OwnerID != req.SenderID {
			return apperrors.Unauthorized("sender does not own this credit")
		}
		if entry.Status != StatusActive {
			return apperrors.InvalidState("credit is %s, only active credits can be transferred", entry.Status)
		}
		if req.Quantity <= 0 {
			return apperrors.InvalidQuantity("transfer quantity must be positive")
		}
		if req.Quantity > entry.Quantity {
			return apperrors.InvalidQuantity("transfer quantity %.3f exceeds available balance %.3f", req.Quantity, entry.Quantity)
		}

		now := s.now()
		debited := entry.Debit(req.Quantity, now)
		if debited.Status != entry.Status && !s.stateMachine.CanTransition(string(entry.Status), string(debited.Status)) {
			return apperrors.InvalidState("credit cannot move from %s to %s", entry.Status, debited.Status)
		}
		if err := txRepo.Update(ctx, debited); err != nil {
			return err
		}

		sequence, err := txRepo.NextCreditSequence(ctx, entry.ProjectID, entry.Vintage)
		if err != nil {
			return err
		}
		project, err := s.projectRepo.GetByID(ctx, entry.ProjectID)
		if err != nil {
			return err
		}
		if project == nil {
			return apperrors.NotFound("project %s not found", entry.ProjectID)
		}
		minted := entry.Mint(recipient.ID, req.Quantity, FormatSerialNumber(entry.Vintage, project.Sequence, sequence), now)
		if err := txRepo.Create(ctx, minted); err != nil {
			return err
		}

		metadata := map[string]interface{}{
			"source_serial": entry.SerialNumber,
			"minted_serial": minted.SerialNumber,
		}
		if req.SettlementRef != "" {
			metadata["settlement_ref"] = req.SettlementRef
		}
		if err := txRepo.CreateTransaction(ctx, s.completedTransaction(entry.ID, TransactionTransfer, &req.SenderID, &req.RecipientID, req.Quantity, metadata)); err != nil {
			return err
		}

		result = TransferResult{Source: debited, Minted: minted}
		return nil
	})
	if err != nil {
		s.recordFailedAttempt(ctx, &req.CreditID, TransactionTransfer, &req.SenderID, &req.RecipientID, req.Quantity, err)
		return nil, err
	}

	s.logger.Info("credits transferred",
		zap.String("credit_id", req.CreditID.String()),
		zap.String("recipient_id", req.RecipientID.String()),
		zap.Float64("quantity", req.Quantity))
	return &result, nil
}

// Retire flips the locked entry to retired in place. No new entry is
// minted and ownership does not change.
func (s *creditService) Retire(ctx context.Context, req RetireRequest) (*CreditEntry, error) {
	if req.Reason == "" {
		return nil, apperrors.MissingReason("a retirement reason is required")
	}

	var retired *CreditEntry
	err := s.repo.InTransaction(ctx, func(txRepo Repository) error {
		entry, err := txRepo.GetByIDForUpdate(ctx, req.CreditID)
		if err != nil {
			return err
		}
		if entry == nil {
			return apperrors.NotFound("credit %s not found", req.CreditID)
		}
		if entry.OwnerID != req.OwnerID {
			return apperrors.Unauthorized("caller does not own this credit")
		}
		if entry.Status != StatusActive {
			return apperrors.InvalidState("credit is %s, only active credits can be retired", entry.Status)
		}
		if req.Quantity <= 0 {
			return apperrors.InvalidQuantity("retirement quantity must be positive")
		}
		if req.Quantity > entry.Quantity {
			return apperrors.InvalidQuantity("retirement quantity %.3f exceeds held balance %.3f", req.Quantity, entry.Quantity)
		}

		retired = entry.Retire(s.now())
		if err := txRepo.Update(ctx, retired); err != nil {
			return err
		}
		return txRepo.CreateTransaction(ctx, s.completedTransaction(entry.ID, TransactionRetirement, &req.OwnerID, nil, req.Quantity, map[string]interface{}{
			"reason":        req.Reason,
			"serial_number": entry.SerialNumber,
		}))
	})
	if err != nil {
		s.recordFailedAttempt(ctx, &req.CreditID, TransactionRetirement, &req.OwnerID, nil, req.Quantity, err)
		return nil, err
	}

	s.logger.Info("credits retired",
		zap.String("credit_id", req.CreditID.String()),
		zap.Float64("quantity", req.Quantity),
		zap.String("reason", req.Reason))
	return retired, nil
}

func (s *creditService) GetCredit(ctx context.Context, id uuid.UUID) (*CreditEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperrors.NotFound("credit %s not found", id)
	}
	return entry, nil
}

func (s *creditService) ListCredits(ctx context.Context, filter ListFilter) ([]*CreditEntry, error) {
	return s.repo.List(ctx, filter)
}

func (s *creditService) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

func (s *creditService) completedTransaction(entryID uuid.UUID, txnType TransactionType, sender, recipient *uuid.UUID, quantity float64, metadata map[string]interface{}) *CreditTransaction {
	now := s.now()
	txn := &CreditTransaction{
		CreditEntryID: &entryID,
		Type:          txnType,
		SenderID:      sender,
		RecipientID:   recipient,
		Quantity:      quantity,
		Status:        TransactionCompleted,
		CompletedAt:   &now,
	}
	if raw, err := json.Marshal(metadata); err == nil {
		txn.Metadata = raw
	}
	return txn
}

// recordFailedAttempt journals a rolled-back mutation. It runs outside
// the aborted transaction so the audit row survives the rollback.
func (s *creditService) recordFailedAttempt(ctx context.Context, entryID *uuid.UUID, txnType TransactionType, sender, recipient *uuid.UUID, quantity float64, cause error) {
	metadata, _ := json.Marshal(map[string]interface{}{
		"error": cause.Error(),
	})
	txn := &CreditTransaction{
		CreditEntryID: entryID,
		Type:          txnType,
		SenderID:      sender,
		RecipientID:   recipient,
		Quantity:      quantity,
		Status:        TransactionFailed,
		Metadata:      metadata,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		s.logger.Error("failed to journal rolled-back attempt",
			zap.String("type", string(txnType)),
			zap.Error(err))
	}
}
