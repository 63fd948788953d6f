package credits

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialNumberFormat(t *testing.T) {
	assert.Equal(t, "CRU-2026-0042-001", FormatSerialNumber(2026, 42, 1))
	assert.Equal(t, "CRU-2025-0001-012", FormatSerialNumber(2025, 1, 12))
	assert.Equal(t, "CRU-2030-1234-107", FormatSerialNumber(2030, 1234, 107))
}

func TestDebitConservesQuantity(t *testing.T) {
	now := time.Now()
	entry := &CreditEntry{ID: uuid.New(), Quantity: 1000, Status: StatusActive, Vintage: 2026}

	debited := entry.Debit(400, now)
	minted := entry.Mint(uuid.New(), 400, "CRU-2026-0042-002", now)

	assert.Equal(t, 1000.0, debited.Quantity+minted.Quantity)
	assert.Equal(t, StatusActive, debited.Status)
	assert.Equal(t, 1000.0, entry.Quantity, "transitions never mutate the receiver")
}

func TestDebitFullBalanceFlipsStatus(t *testing.T) {
	entry := &CreditEntry{ID: uuid.New(), Quantity: 250, Status: StatusActive}

	debited := entry.Debit(250, time.Now())

	assert.Equal(t, 0.0, debited.Quantity)
	assert.Equal(t, StatusTransferred, debited.Status)
}

func TestMintLinksSourceAndKeepsVintage(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := &CreditEntry{ID: uuid.New(), ProjectID: uuid.New(), Quantity: 1000, Vintage: 2026, Status: StatusActive, IssuedAt: issuedAt}
	recipientID := uuid.New()

	minted := entry.Mint(recipientID, 400, "CRU-2026-0042-002", time.Now())

	assert.Equal(t, recipientID, minted.OwnerID)
	assert.Equal(t, entry.ProjectID, minted.ProjectID)
	assert.Equal(t, 2026, minted.Vintage)
	assert.Equal(t, issuedAt, minted.IssuedAt)
	require.NotNil(t, minted.SourceEntryID)
	assert.Equal(t, entry.ID, *minted.SourceEntryID)
}

func TestRetireKeepsQuantity(t *testing.T) {
	entry := &CreditEntry{ID: uuid.New(), OwnerID: uuid.New(), Quantity: 600, Status: StatusActive}

	retired := entry.Retire(time.Now())

	assert.Equal(t, StatusRetired, retired.Status)
	assert.Equal(t, 600.0, retired.Quantity)
	assert.Equal(t, entry.OwnerID, retired.OwnerID)
}

func TestListFilterValidate(t *testing.T) {
	valid := ListFilter{Limit: 50, SortBy: "quantity", SortOrder: "asc"}
	assert.NoError(t, valid.Validate())

	tooLarge := ListFilter{Limit: 501}
	assert.Error(t, tooLarge.Validate())

	badSort := ListFilter{SortBy: "owner_id; DROP TABLE credit_entries"}
	assert.Error(t, badSort.Validate())

	badOrder := ListFilter{SortOrder: "sideways"}
	assert.Error(t, badOrder.Validate())
}

func TestTransactionFilterValidate(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	inverted := TransactionFilter{From: &from, To: &to}
	assert.Error(t, inverted.Validate())

	ok := TransactionFilter{From: &to, To: &from, Limit: 100}
	assert.NoError(t, ok.Validate())
}
