package credits

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carbon-registry/registry-backend/internal/auth"
	"carbon-registry/registry-backend/internal/httpapi"
	"carbon-registry/registry-backend/internal/projects"
	"carbon-registry/registry-backend/pkg/apperrors"
	"carbon-registry/registry-backend/pkg/pdf"
)

type Handler struct {
	service      Service
	projectRepo  projects.Repository
	certificates *pdf.CertificateGenerator
}

func NewHandler(service Service, projectRepo projects.Repository, certificates *pdf.CertificateGenerator) *Handler {
	return &Handler{service: service, projectRepo: projectRepo, certificates: certificates}
}

// RegisterRoutes mounts the ledger endpoints on the router group.
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.POST("/credits/issue", h.Issue)
	rg.GET("/credits", h.List)
	rg.GET("/credits/:id", h.Get)
	rg.POST("/credits/:id/transfer", h.Transfer)
	rg.POST("/credits/:id/retire", h.Retire)
	rg.GET("/credits/:id/certificate", h.Certificate)
	rg.GET("/transactions", h.ListTransactions)
	rg.GET("/transactions/export", h.ExportTransactions)
}

type issueBody struct {
	ProjectID      uuid.UUID `json:"project_id" binding:"required"`
	VerificationID uuid.UUID `json:"verification_id" binding:"required"`
}

func (h *Handler) Issue(c *gin.Context) {
	var body issueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.service.Issue(c.Request.Context(), IssueRequest{
		ProjectID:      body.ProjectID,
		VerificationID: body.VerificationID,
	})
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

type transferBody struct {
	RecipientID   uuid.UUID `json:"recipient_id" binding:"required"`
	Quantity      float64   `json:"quantity" binding:"required"`
	SettlementRef string    `json:"settlement_ref"`
}

func (h *Handler) Transfer(c *gin.Context) {
	creditID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit id"})
		return
	}
	senderID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.Transfer(c.Request.Context(), TransferRequest{
		CreditID:      creditID,
		SenderID:      senderID,
		RecipientID:   body.RecipientID,
		Quantity:      body.Quantity,
		SettlementRef: body.SettlementRef,
	})
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type retireBody struct {
	Quantity float64 `json:"quantity" binding:"required"`
	Reason   string  `json:"reason"`
}

func (h *Handler) Retire(c *gin.Context) {
	creditID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit id"})
		return
	}
	ownerID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body retireBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := h.service.Retire(c.Request.Context(), RetireRequest{
		CreditID: creditID,
		OwnerID:  ownerID,
		Quantity: body.Quantity,
		Reason:   body.Reason,
	})
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) Get(c *gin.Context) {
	creditID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit id"})
		return
	}
	entry, err := h.service.GetCredit(c.Request.Context(), creditID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) List(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, err := h.service.ListCredits(c.Request.Context(), *filter)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": entries, "count": len(entries)})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	filter, err := parseTransactionFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txns, err := h.service.ListTransactions(c.Request.Context(), *filter)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

// ExportTransactions streams the filtered journal as an Excel workbook.
func (h *Handler) ExportTransactions(c *gin.Context) {
	filter, err := parseTransactionFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txns, err := h.service.ListTransactions(c.Request.Context(), *filter)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	workbook, err := BuildJournalWorkbook(txns)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	filename := fmt.Sprintf("transactions-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

// Certificate renders the retirement certificate of a retired entry.
func (h *Handler) Certificate(c *gin.Context) {
	creditID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit id"})
		return
	}
	entry, err := h.service.GetCredit(c.Request.Context(), creditID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	if entry.Status != StatusRetired {
		httpapi.RespondError(c, apperrors.InvalidState("certificates are only available for retired credits"))
		return
	}
	project, err := h.projectRepo.GetByID(c.Request.Context(), entry.ProjectID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	projectName := entry.ProjectID.String()
	if project != nil {
		projectName = project.Name
	}

	reason := ""
	txns, err := h.service.ListTransactions(c.Request.Context(), TransactionFilter{CreditEntryID: &entry.ID})
	if err == nil {
		for _, txn := range txns {
			if txn.Type == TransactionRetirement && txn.Status == TransactionCompleted {
				reason = retirementReason(txn)
				break
			}
		}
	}

	data, err := h.certificates.Generate(pdf.CertificateData{
		SerialNumber: entry.SerialNumber,
		ProjectName:  projectName,
		Quantity:     entry.Quantity,
		Vintage:      entry.Vintage,
		RetiredBy:    entry.OwnerID.String(),
		Reason:       reason,
		RetiredAt:    entry.LastActionAt,
	})
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "certificate-"+entry.SerialNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}

func parseListFilter(c *gin.Context) (*ListFilter, error) {
	var filter ListFilter
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid owner_id")
		}
		filter.OwnerID = &id
	}
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid project_id")
		}
		filter.ProjectID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := CreditStatus(raw)
		switch status {
		case StatusActive, StatusTransferred, StatusRetired:
			filter.Status = &status
		default:
			return nil, fmt.Errorf("unknown status %q", raw)
		}
	}
	if raw := c.Query("vintage"); raw != "" {
		var vintage int
		if _, err := fmt.Sscanf(raw, "%d", &vintage); err != nil {
			return nil, fmt.Errorf("invalid vintage")
		}
		filter.Vintage = &vintage
	}
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &filter.Limit); err != nil {
			return nil, fmt.Errorf("invalid limit")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &filter.Offset); err != nil {
			return nil, fmt.Errorf("invalid offset")
		}
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return &filter, nil
}

func parseTransactionFilter(c *gin.Context) (*TransactionFilter, error) {
	var filter TransactionFilter
	if raw := c.Query("credit_entry_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid credit_entry_id")
		}
		filter.CreditEntryID = &id
	}
	if raw := c.Query("type"); raw != "" {
		txnType := TransactionType(raw)
		switch txnType {
		case TransactionIssuance, TransactionTransfer, TransactionRetirement:
			filter.Type = &txnType
		default:
			return nil, fmt.Errorf("unknown transaction type %q", raw)
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := TransactionStatus(raw)
		switch status {
		case TransactionCompleted, TransactionFailed:
			filter.Status = &status
		default:
			return nil, fmt.Errorf("unknown transaction status %q", raw)
		}
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid from timestamp, expected RFC3339")
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid to timestamp, expected RFC3339")
		}
		filter.To = &to
	}
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &filter.Limit); err != nil {
			return nil, fmt.Errorf("invalid limit")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &filter.Offset); err != nil {
			return nil, fmt.Errorf("invalid offset")
		}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return &filter, nil
}

func retirementReason(txn *CreditTransaction) string {
	if len(txn.Metadata) == 0 {
		return ""
	}
	var meta struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(txn.Metadata, &meta); err != nil {
		return ""
	}
	return meta.Reason
}
