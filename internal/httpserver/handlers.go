package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/service/delivery"
	"milk-delivery/internal/service/session"
)

type handlers struct {
	stores storeRegistry
	auth   authService
	log    *zap.SugaredLogger
}

// store resolves the caller's Store. Callers must run behind authMiddleware.
func (h *handlers) store(c *gin.Context) (*delivery.Store, session.Principal) {
	p, _ := principalFrom(c)
	return h.stores.Store(c.Request.Context(), p.OwnerID), p
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (h *handlers) login(c *gin.Context) {
	var in session.LoginInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) logout(c *gin.Context) {
	p, _ := principalFrom(c)
	if p.Role != session.RoleOwner {
		if err := h.auth.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
			writeError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	p, _ := principalFrom(c)
	c.JSON(http.StatusOK, p)
}

type statusResponse struct {
	OwnerID     string         `json:"ownerId"`
	State       delivery.State `json:"state"`
	Customers   int            `json:"customers"`
	Agents      int            `json:"agents"`
	Assignments int            `json:"assignments"`
}

func statusOf(s *delivery.Store) statusResponse {
	snap := s.Snapshot()
	return statusResponse{
		OwnerID:     s.OwnerID(),
		State:       snap.State,
		Customers:   len(snap.Customers),
		Agents:      len(snap.Agents),
		Assignments: len(snap.Assignments),
	}
}

func (h *handlers) status(c *gin.Context) {
	s, _ := h.store(c)
	c.JSON(http.StatusOK, statusOf(s))
}

func (h *handlers) refresh(c *gin.Context) {
	s, _ := h.store(c)
	s.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, statusOf(s))
}

func (h *handlers) listCustomers(c *gin.Context) {
	s, _ := h.store(c)
	c.JSON(http.StatusOK, gin.H{"results": s.Customers()})
}

func (h *handlers) getCustomer(c *gin.Context) {
	s, _ := h.store(c)
	cu, ok := s.CustomerByID(c.Param("id"))
	if !ok {
		writeError(c, fmt.Errorf("customer %q: %w", c.Param("id"), domain.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, cu)
}

func (h *handlers) listAgents(c *gin.Context) {
	s, _ := h.store(c)
	c.JSON(http.StatusOK, gin.H{"results": s.Agents()})
}

func (h *handlers) getAgent(c *gin.Context) {
	s, _ := h.store(c)
	a, ok := s.AgentByID(c.Param("id"))
	if !ok {
		writeError(c, fmt.Errorf("delivery agent %q: %w", c.Param("id"), domain.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, a)
}

// scopeQuery restricts agents and customers to their own assignments.
func scopeQuery(p session.Principal, q delivery.AssignmentQuery) delivery.AssignmentQuery {
	switch p.Role {
	case session.RoleAgent:
		q.AgentID = p.SubjectID
	case session.RoleCustomer:
		q.CustomerID = p.SubjectID
	}
	return q
}

func (h *handlers) listAssignments(c *gin.Context) {
	s, p := h.store(c)
	q := delivery.AssignmentQuery{
		From:    c.Query("from"),
		To:      c.Query("to"),
		AgentID: c.Query("agentId"),
	}
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := domain.ParseDate(d); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": s.Assignments(scopeQuery(p, q))})
}

func (h *handlers) assignWork(c *gin.Context) {
	var in delivery.AssignInput
	if !bindJSON(c, &in) {
		return
	}
	s, _ := h.store(c)
	a, err := s.AssignWork(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ownedAssignment loads an assignment the caller may mutate. Agents only see
// their own, anything else reads as not found.
func ownedAssignment(s *delivery.Store, p session.Principal, id string) error {
	a, ok := s.AssignmentByID(id)
	if !ok || (p.Role == session.RoleAgent && a.DeliveryAgentID != p.SubjectID) {
		return fmt.Errorf("assignment %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

type deliveredRequest struct {
	Delivered *bool `json:"delivered"`
}

func (h *handlers) toggleDelivered(c *gin.Context) {
	var in deliveredRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
			return
		}
	}
	s, p := h.store(c)
	id := c.Param("id")
	if err := ownedAssignment(s, p, id); err != nil {
		writeError(c, err)
		return
	}
	a, err := s.ToggleDelivered(c.Request.Context(), id, in.Delivered)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type litersRequest struct {
	Liters *float64 `json:"liters"`
}

func (h *handlers) updateLiters(c *gin.Context) {
	var in litersRequest
	if !bindJSON(c, &in) {
		return
	}
	if in.Liters == nil {
		writeError(c, fmt.Errorf("%w: liters is required", domain.ErrValidation))
		return
	}
	s, p := h.store(c)
	id := c.Param("id")
	if err := ownedAssignment(s, p, id); err != nil {
		writeError(c, err)
		return
	}
	a, err := s.UpdateAssignmentLiters(c.Request.Context(), id, *in.Liters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
