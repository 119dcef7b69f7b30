package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"supportdesk/internal/auth"
	"supportdesk/internal/calls"
	"supportdesk/internal/lifecycle"
	"supportdesk/internal/messages"
	"supportdesk/internal/queries"
	"supportdesk/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the orchestrator, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Orc      *lifecycle.Orchestrator
	Queries  queries.Store
	Messages messages.Store
	Sessions calls.SessionStore
	Requests calls.RequestStore
	Reports  *reporting.Service
}

// writeError maps the orchestrator's failure taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, lifecycle.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, lifecycle.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, lifecycle.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, lifecycle.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, lifecycle.ErrInvalidState):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, lifecycle.ErrProviderFailure):
		status, msg = http.StatusBadGateway, "call provider unavailable"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func identity(c *gin.Context) (userID, role string) {
	userID, _ = auth.UserID(c.Request.Context())
	role, _ = auth.Role(c.Request.Context())
	return userID, role
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Donor intake (public) ---

type createQueryRequest struct {
	DonorID   string `json:"donor_id"`
	DonorName string `json:"donor_name"`
	TestName  string `json:"test_name"`
	Stage     string `json:"stage"`
	Device    string `json:"device"`
	Content   string `json:"content"`
}

func (h Handlers) CreateQuery(c *gin.Context) {
	var req createQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	q, err := h.Orc.CreateQuery(c.Request.Context(), lifecycle.NewQuery{
		DonorID:   req.DonorID,
		DonorName: req.DonorName,
		TestName:  req.TestName,
		Stage:     req.Stage,
		Device:    req.Device,
		Content:   req.Content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

type donorMessageRequest struct {
	DonorID string `json:"donor_id"`
	Content string `json:"content"`
}

func (h Handlers) DonorSendMessage(c *gin.Context) {
	var req donorMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := h.Orc.SendMessage(c.Request.Context(), lifecycle.ChatMessage{
		QueryID: c.Param("query_id"),
		Sender:  messages.SenderDonor,
		DonorID: req.DonorID,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

type requestCallRequest struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

func (h Handlers) RequestCall(c *gin.Context) {
	var req requestCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Orc.RequestCall(c.Request.Context(), c.Param("query_id"), calls.Mode(req.Mode), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type donorEndCallRequest struct {
	DonorID string `json:"donor_id"`
}

func (h Handlers) DonorEndCall(c *gin.Context) {
	var req donorEndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Orc.EndCall(c.Request.Context(), c.Param("session_id"), req.DonorID, "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) DonorMarkRead(c *gin.Context) {
	var req donorEndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Orc.MarkMessagesRead(c.Request.Context(), c.Param("query_id"), messages.SenderDonor, req.DonorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Reads ---

func (h Handlers) ListQueries(c *gin.Context) {
	limit, offset := pageParams(c)
	out, err := h.Queries.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": out})
}

func (h Handlers) GetQuery(c *gin.Context) {
	q, err := h.Queries.Get(c.Request.Context(), c.Param("query_id"))
	if err != nil {
		if errors.Is(err, queries.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "query not found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h Handlers) ListMessages(c *gin.Context) {
	limit, offset := pageParams(c)
	out, err := h.Messages.ListByQuery(c.Request.Context(), c.Param("query_id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h Handlers) ListCallRequests(c *gin.Context) {
	limit, offset := pageParams(c)
	out, err := h.Requests.ListByQuery(c.Request.Context(), c.Param("query_id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_requests": out})
}

// ActiveCall lets a reconnecting client re-fetch in-flight call state.
func (h Handlers) ActiveCall(c *gin.Context) {
	active, err := h.Sessions.FindActiveByQuery(c.Request.Context(), c.Param("query_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(active) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active call"})
		return
	}
	c.JSON(http.StatusOK, active[0])
}

// --- Agent query lifecycle ---

func (h Handlers) AcceptQuery(c *gin.Context) {
	userID, _ := identity(c)
	q, err := h.Orc.AcceptQuery(c.Request.Context(), c.Param("query_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h Handlers) ResolveQuery(c *gin.Context) {
	userID, role := identity(c)
	q, err := h.Orc.ResolveQuery(c.Request.Context(), c.Param("query_id"), userID, role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type transferRequest struct {
	TargetAgentID string `json:"target_agent_id"`
	Note          string `json:"note"`
}

func (h Handlers) TransferQuery(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	q, err := h.Orc.TransferQuery(c.Request.Context(), c.Param("query_id"), userID, role, req.TargetAgentID, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type agentMessageRequest struct {
	Content string `json:"content"`
}

func (h Handlers) AgentSendMessage(c *gin.Context) {
	var req agentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, _ := identity(c)
	m, err := h.Orc.SendMessage(c.Request.Context(), lifecycle.ChatMessage{
		QueryID: c.Param("query_id"),
		Sender:  messages.SenderAdmin,
		AgentID: userID,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) AgentMarkRead(c *gin.Context) {
	userID, _ := identity(c)
	if err := h.Orc.MarkMessagesRead(c.Request.Context(), c.Param("query_id"), messages.SenderAdmin, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) DeleteQuery(c *gin.Context) {
	_, role := identity(c)
	if err := h.Orc.RemoveQuery(c.Request.Context(), c.Param("query_id"), role); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// --- Agent call lifecycle ---

type respondCallRequest struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

func (h Handlers) AcceptCallRequest(c *gin.Context) {
	var req respondCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	s, err := h.Orc.AcceptCallRequest(c.Request.Context(), c.Param("query_id"), userID, role, req.RequestID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) RejectCallRequest(c *gin.Context) {
	var req respondCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	r, err := h.Orc.RejectCallRequest(c.Request.Context(), c.Param("query_id"), userID, role, req.RequestID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type startCallRequest struct {
	Mode            string `json:"mode"`
	OriginRequestID string `json:"origin_request_id"`
}

func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	s, err := h.Orc.StartCall(c.Request.Context(), lifecycle.StartCallInput{
		QueryID:         c.Param("query_id"),
		AgentID:         userID,
		Role:            role,
		Mode:            calls.Mode(req.Mode),
		OriginRequestID: req.OriginRequestID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

type callStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	var req callStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Orc.UpdateCallStatus(c.Request.Context(), c.Param("session_id"), calls.SessionStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// --- Reporting ---

// summaryRange parses from/to query params (RFC 3339), defaulting to the
// trailing 7 days.
func summaryRange(c *gin.Context) (reporting.SummaryRequest, bool) {
	now := time.Now().UTC()
	req := reporting.SummaryRequest{
		Range: reporting.TimeRange{From: now.Add(-7 * 24 * time.Hour), To: now},
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return req, false
		}
		req.Range.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return req, false
		}
		req.Range.To = t
	}
	return req, true
}

func (h Handlers) QueriesSummary(c *gin.Context) {
	req, ok := summaryRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.QueriesSummary(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CallsSummary(c *gin.Context) {
	req, ok := summaryRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) EndCall(c *gin.Context) {
	userID, role := identity(c)
	s, err := h.Orc.EndCall(c.Request.Context(), c.Param("session_id"), userID, role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
