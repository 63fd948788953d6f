package credits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreditStatus is the lifecycle state of a credit entry
type CreditStatus string

const (
	StatusActive      CreditStatus = "active"
	StatusTransferred CreditStatus = "transferred"
	StatusRetired     CreditStatus = "retired"
)

// TransactionType classifies journal entries
type TransactionType string

const (
	TransactionIssuance   TransactionType = "issuance"
	TransactionTransfer   TransactionType = "transfer"
	TransactionRetirement TransactionType = "retirement"
)

// TransactionStatus is the outcome recorded in the journal
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// CreditEntry is a fungible quantity of carbon credit held by one owner
// for one project. Entries are never deleted; ownership and quantity
// change only through the transition functions below.
type CreditEntry struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SerialNumber  string       `gorm:"uniqueIndex;not null" json:"serial_number"`
	ProjectID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"project_id"`
	OwnerID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Quantity      float64      `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Vintage       int          `gorm:"not null" json:"vintage"`
	Status        CreditStatus `gorm:"not null;default:'active'" json:"status"`
	SourceEntryID *uuid.UUID   `gorm:"type:uuid" json:"source_entry_id,omitempty"` // set on entries minted by transfer
	IssuedAt      time.Time    `json:"issued_at"`
	LastActionAt  time.Time    `json:"last_action_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Debit returns a copy of the entry with quantity reduced by amount.
// A fully drained entry flips to transferred.
func (e *CreditEntry) Debit(amount float64, now time.Time) *CreditEntry {
	next := *e
	next.Quantity -= amount
	if next.Quantity == 0 {
		next.Status = StatusTransferred
	}
	next.LastActionAt = now
	return &next
}

// Mint returns the new entry created for the recipient of a transfer.
// The minted entry keeps the vintage and project of its source.
func (e *CreditEntry) Mint(recipientID uuid.UUID, amount float64, serialNumber string, now time.Time) *CreditEntry {
	sourceID := e.ID
	return &CreditEntry{
		SerialNumber:  serialNumber,
		ProjectID:     e.ProjectID,
		OwnerID:       recipientID,
		Quantity:      amount,
		Vintage:       e.Vintage,
		Status:        StatusActive,
		SourceEntryID: &sourceID,
		IssuedAt:      e.IssuedAt,
		LastActionAt:  now,
	}
}

// Retire returns a copy of the entry flipped to retired. Quantity is
// kept as the retired amount; retirement is terminal.
func (e *CreditEntry) Retire(now time.Time) *CreditEntry {
	next := *e
	next.Status = StatusRetired
	next.LastActionAt = now
	return &next
}

// CreditTransaction is one immutable journal entry. Failed attempts are
// recorded too, never silently dropped.
type CreditTransaction struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreditEntryID *uuid.UUID        `gorm:"type:uuid;index" json:"credit_entry_id,omitempty"` // nil on issuance attempts that failed before an entry existed
	Type          TransactionType   `gorm:"not null" json:"type"`
	SenderID      *uuid.UUID        `gorm:"type:uuid" json:"sender_id,omitempty"`
	RecipientID   *uuid.UUID        `gorm:"type:uuid" json:"recipient_id,omitempty"`
	Quantity      float64           `gorm:"not null" json:"quantity"`
	Status        TransactionStatus `gorm:"not null" json:"status"`
	Metadata      datatypes.JSON    `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
