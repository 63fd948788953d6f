package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/internal/auth"
	"carbon-registry/registry-backend/internal/httpapi"
)

type Handler struct {
	assignments *AssignmentEngine
	consensus   *ConsensusEngine
	deadlines   *DeadlineScheduler
	trail       *audit.Recorder
}

func NewHandler(assignments *AssignmentEngine, consensus *ConsensusEngine, deadlines *DeadlineScheduler, trail *audit.Recorder) *Handler {
	return &Handler{assignments: assignments, consensus: consensus, deadlines: deadlines, trail: trail}
}

// RegisterRoutes mounts the verification endpoints on the router group.
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	rg.POST("/verifications", h.Submit)
	rg.POST("/verifications/:id/votes", h.CastVote)
	rg.GET("/verifications/:id/consensus", h.GetConsensus)
	rg.GET("/verifications/:id/events", h.ListEvents)
	rg.POST("/verifications/:id/deadline/extend", h.ExtendDeadline)
}

type submitBody struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
}

func (h *Handler) Submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.assignments.Submit(c.Request.Context(), body.ProjectID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

type voteBody struct {
	Decision Decision `json:"decision" binding:"required"`
	Notes    string   `json:"notes"`
	Proof    string   `json:"proof"`
}

func (h *Handler) CastVote(c *gin.Context) {
	verificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification id"})
		return
	}
	validatorID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body voteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := h.consensus.CastVote(c.Request.Context(), verificationID, validatorID, body.Decision, body.Notes, body.Proof)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) GetConsensus(c *gin.Context) {
	verificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification id"})
		return
	}
	status, err := h.consensus.GetConsensusStatus(c.Request.Context(), verificationID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListEvents returns the audit trail of a verification request.
func (h *Handler) ListEvents(c *gin.Context) {
	verificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification id"})
		return
	}
	events, err := h.trail.ListByVerification(c.Request.Context(), verificationID)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

type extendBody struct {
	ExtensionDays int `json:"extension_days" binding:"required"`
}

func (h *Handler) ExtendDeadline(c *gin.Context) {
	verificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification id"})
		return
	}
	extendedBy, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var body extendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.deadlines.ExtendDeadline(c.Request.Context(), verificationID, body.ExtensionDays, extendedBy.String())
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
