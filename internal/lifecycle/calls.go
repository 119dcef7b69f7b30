package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportdesk/internal/calls"
	"supportdesk/internal/gateway"
	"supportdesk/internal/messages"

	"github.com/google/uuid"
)

// overrunNotice is the exact system-message content the sweeper appends when
// a call runs past the standard duration. FlagOverruns scans for it verbatim
// to keep the notice once-per-session.
const overrunNotice = "Call has exceeded the standard duration"

/* ===================== CALL REQUESTS ===================== */

// RequestCall records a donor's ask for a call on an open query. The request
// surfaces in the timeline as a linked system message, and the assigned
// agent gets a push notification when one is wired.
func (o *Orchestrator) RequestCall(ctx context.Context, queryID string, mode calls.Mode, note string) (calls.Request, error) {
	if mode != calls.ModeAudio && mode != calls.ModeVideo {
		return calls.Request{}, fmt.Errorf("%w: mode must be audio or video", ErrInvalidArgument)
	}

	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return calls.Request{}, err
	}
	if q.Status.Terminal() {
		return calls.Request{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}

	now := o.clock().UTC()
	r := calls.Request{
		ID:        uuid.NewString(),
		QueryID:   q.ID,
		Mode:      mode,
		Message:   note,
		Status:    calls.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	content := fmt.Sprintf("%s requested a %s call", q.DonorName, mode)
	if note != "" {
		content += ": " + note
	}
	m := o.systemMessage(q.ID, content, now)
	m.CallRequestID = r.ID

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.requests.Create(ctx, r); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return calls.Request{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventNewMessage, m)
		o.cast.ToAdmins(gateway.EventEnhancedMessage, m)
	})
	if o.push != nil && q.AssignedAgentID != "" {
		if agent, ok, aerr := o.agents.Agent(ctx, q.AssignedAgentID); aerr == nil && ok && agent.DeviceToken != "" {
			fx.add("call request push", func(ctx context.Context) error {
				return o.push.Notify(ctx, agent.DeviceToken,
					"Incoming call request",
					fmt.Sprintf("%s is requesting a %s call", q.DonorName, mode),
					map[string]string{"query_id": q.ID, "request_id": r.ID},
				)
			})
		}
	}
	o.runEffects(ctx, &fx)
	return r, nil
}

// AcceptCallRequest resolves a pending request into a live session. When
// requestID is empty, the most recent pending request for the query is used.
//
// Provider calls run before any local write: if room or token creation
// fails, no session row exists and the request stays PENDING.
func (o *Orchestrator) AcceptCallRequest(ctx context.Context, queryID, agentID, role, requestID string) (calls.Session, error) {
	release, err := o.locks.Acquire(ctx, queryID)
	if err != nil {
		return calls.Session{}, err
	}
	defer release()

	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return calls.Session{}, err
	}
	if q.Status.Terminal() {
		return calls.Session{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}
	if err := requireAuthority(q, agentID, role); err != nil {
		return calls.Session{}, err
	}
	agent, err := o.getAgent(ctx, agentID)
	if err != nil {
		return calls.Session{}, err
	}

	r, err := o.resolvePendingRequest(ctx, q.ID, requestID)
	if err != nil {
		return calls.Session{}, err
	}

	if err := o.requireNoActiveCall(ctx, q.ID); err != nil {
		return calls.Session{}, err
	}

	now := o.clock().UTC()
	s, err := o.provisionSession(ctx, q.ID, agent.ID, r.Mode, r.ID, now)
	if err != nil {
		return calls.Session{}, err
	}

	r.Status = calls.RequestAccepted
	r.RespondedByID = agent.ID
	r.UpdatedAt = now

	annotated, haveNote, err := o.messages.FindByCallRequest(ctx, r.ID)
	if err != nil {
		return calls.Session{}, err
	}

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.sessions.Create(ctx, s); err != nil {
			return err
		}
		if err := o.requests.Update(ctx, r); err != nil {
			return err
		}
		if haveNote {
			annotated.Content += fmt.Sprintf("\nACCEPTED by %s (room %s)", agent.Name, s.RoomName)
			annotated.CallSessionID = s.ID
			annotated.UpdatedAt = now
			return o.messages.Update(ctx, annotated)
		}
		annotated = o.systemMessage(q.ID, fmt.Sprintf("Call request ACCEPTED by %s (room %s)", agent.Name, s.RoomName), now)
		annotated.CallRequestID = r.ID
		annotated.CallSessionID = s.ID
		return o.messages.Append(ctx, annotated)
	})
	if err != nil {
		return calls.Session{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventCallStarted, func() {
		o.cast.ToQuery(q.ID, gateway.EventCallStarted, callEvent(s, true))
		o.cast.ToAdmins(gateway.EventCallStarted, callEvent(s, false))
	})
	fx.broadcast(gateway.EventEnhancedMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventEnhancedMessage, annotated)
		o.cast.ToAdmins(gateway.EventEnhancedMessage, annotated)
	})
	o.runEffects(ctx, &fx)
	return s, nil
}

// RejectCallRequest declines a pending request. The linked timeline message
// is annotated in place; if it went missing a fresh system message records
// the rejection instead.
func (o *Orchestrator) RejectCallRequest(ctx context.Context, queryID, agentID, role, requestID, reason string) (calls.Request, error) {
	release, err := o.locks.Acquire(ctx, queryID)
	if err != nil {
		return calls.Request{}, err
	}
	defer release()

	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return calls.Request{}, err
	}
	if err := requireAuthority(q, agentID, role); err != nil {
		return calls.Request{}, err
	}
	agent, err := o.getAgent(ctx, agentID)
	if err != nil {
		return calls.Request{}, err
	}

	r, err := o.resolvePendingRequest(ctx, q.ID, requestID)
	if err != nil {
		return calls.Request{}, err
	}

	now := o.clock().UTC()
	r.Status = calls.RequestRejected
	r.RespondedByID = agent.ID
	r.UpdatedAt = now

	note := fmt.Sprintf("REJECTED by %s", agent.Name)
	if reason != "" {
		note += ": " + reason
	}

	annotated, haveNote, err := o.messages.FindByCallRequest(ctx, r.ID)
	if err != nil {
		return calls.Request{}, err
	}

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.requests.Update(ctx, r); err != nil {
			return err
		}
		if haveNote {
			annotated.Content += "\n" + note
			annotated.UpdatedAt = now
			return o.messages.Update(ctx, annotated)
		}
		annotated = o.systemMessage(q.ID, "Call request "+note, now)
		annotated.CallRequestID = r.ID
		return o.messages.Append(ctx, annotated)
	})
	if err != nil {
		return calls.Request{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventEnhancedMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventEnhancedMessage, annotated)
		o.cast.ToAdmins(gateway.EventEnhancedMessage, annotated)
	})
	o.runEffects(ctx, &fx)
	return r, nil
}

// resolvePendingRequest loads an explicit request by id, or the most recent
// pending one when no id is given.
func (o *Orchestrator) resolvePendingRequest(ctx context.Context, queryID, requestID string) (calls.Request, error) {
	if requestID != "" {
		r, err := o.requests.Get(ctx, requestID)
		if err != nil {
			if errors.Is(err, calls.ErrNotFound) {
				return calls.Request{}, fmt.Errorf("%w: call request %s", ErrNotFound, requestID)
			}
			return calls.Request{}, err
		}
		if r.QueryID != queryID {
			return calls.Request{}, fmt.Errorf("%w: call request %s belongs to another query", ErrInvalidArgument, requestID)
		}
		if r.Status != calls.RequestPending {
			return calls.Request{}, fmt.Errorf("%w: call request %s is %s", ErrInvalidState, r.ID, r.Status)
		}
		return r, nil
	}
	r, ok, err := o.requests.FindPendingByQuery(ctx, queryID)
	if err != nil {
		return calls.Request{}, err
	}
	if !ok {
		return calls.Request{}, fmt.Errorf("%w: no pending call request for query %s", ErrNotFound, queryID)
	}
	return r, nil
}

/* ===================== SESSIONS ===================== */

// StartCallInput is the agent-initiated direct call input. OriginRequestID
// threads the accepted request this start fulfils, which suppresses a
// duplicate timeline announcement; without it a short recency window on the
// latest accepted request does the same job.
type StartCallInput struct {
	QueryID         string
	AgentID         string
	Role            string
	Mode            calls.Mode
	OriginRequestID string
}

// StartCall provisions a session without a pending request. If the start
// fulfils an already-accepted request whose session is still active, that
// session is returned as-is.
func (o *Orchestrator) StartCall(ctx context.Context, in StartCallInput) (calls.Session, error) {
	if in.Mode != calls.ModeAudio && in.Mode != calls.ModeVideo {
		return calls.Session{}, fmt.Errorf("%w: mode must be audio or video", ErrInvalidArgument)
	}

	release, err := o.locks.Acquire(ctx, in.QueryID)
	if err != nil {
		return calls.Session{}, err
	}
	defer release()

	q, err := o.getQuery(ctx, in.QueryID)
	if err != nil {
		return calls.Session{}, err
	}
	if q.Status.Terminal() {
		return calls.Session{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}
	if err := requireAuthority(q, in.AgentID, in.Role); err != nil {
		return calls.Session{}, err
	}

	if s, ok, err := o.sessionForOrigin(ctx, q.ID, in.OriginRequestID); err != nil {
		return calls.Session{}, err
	} else if ok {
		return s, nil
	}

	if err := o.requireNoActiveCall(ctx, q.ID); err != nil {
		return calls.Session{}, err
	}

	now := o.clock().UTC()
	s, err := o.provisionSession(ctx, q.ID, in.AgentID, in.Mode, in.OriginRequestID, now)
	if err != nil {
		return calls.Session{}, err
	}

	m := messages.Message{
		ID:            uuid.NewString(),
		QueryID:       q.ID,
		Content:       fmt.Sprintf("A %s call has started", in.Mode),
		Sender:        messages.SenderSystem,
		Type:          messages.TypeCallStarted,
		CallSessionID: s.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.sessions.Create(ctx, s); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return calls.Session{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventCallStarted, func() {
		o.cast.ToQuery(q.ID, gateway.EventCallStarted, callEvent(s, true))
		o.cast.ToAdmins(gateway.EventCallStarted, callEvent(s, false))
	})
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventNewMessage, m)
	})
	o.runEffects(ctx, &fx)
	return s, nil
}

// sessionForOrigin returns the still-active session already provisioned for
// the accepted request a direct start is fulfilling.
func (o *Orchestrator) sessionForOrigin(ctx context.Context, queryID, originRequestID string) (calls.Session, bool, error) {
	now := o.clock().UTC()

	if originRequestID == "" {
		// Fallback: an acceptance inside the recency window means the agent's
		// client fired a direct start right after accepting.
		r, ok, err := o.requests.FindLatestAcceptedByQuery(ctx, queryID)
		if err != nil || !ok {
			return calls.Session{}, false, err
		}
		if now.Sub(r.UpdatedAt) > o.requestRecency {
			return calls.Session{}, false, nil
		}
		originRequestID = r.ID
	}

	active, err := o.sessions.FindActiveByQuery(ctx, queryID)
	if err != nil {
		return calls.Session{}, false, err
	}
	for _, s := range active {
		if s.RequestID == originRequestID {
			return s, true, nil
		}
	}
	return calls.Session{}, false, nil
}

func (o *Orchestrator) requireNoActiveCall(ctx context.Context, queryID string) error {
	active, err := o.sessions.FindActiveByQuery(ctx, queryID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return fmt.Errorf("%w: query %s already has an active call %s", ErrConflict, queryID, active[0].ID)
	}
	return nil
}

// provisionSession does the provider round-trips and assembles, but does not
// persist, a CREATED session.
func (o *Orchestrator) provisionSession(ctx context.Context, queryID, agentID string, mode calls.Mode, requestID string, now time.Time) (calls.Session, error) {
	room, err := o.rooms.CreateRoom(ctx, string(mode), now.Add(o.roomLifetime))
	if err != nil {
		return calls.Session{}, fmt.Errorf("%w: create room: %v", ErrProviderFailure, err)
	}
	agentToken, err := o.rooms.CreateToken(ctx, room.Name, true, string(mode))
	if err != nil {
		return calls.Session{}, fmt.Errorf("%w: agent token: %v", ErrProviderFailure, err)
	}
	donorToken, err := o.rooms.CreateToken(ctx, room.Name, false, string(mode))
	if err != nil {
		return calls.Session{}, fmt.Errorf("%w: donor token: %v", ErrProviderFailure, err)
	}

	return calls.Session{
		ID:         uuid.NewString(),
		QueryID:    queryID,
		AgentID:    agentID,
		RoomName:   room.Name,
		Mode:       mode,
		Status:     calls.SessionCreated,
		AgentToken: agentToken,
		DonorToken: donorToken,
		RequestID:  requestID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateCallStatus advances a session, referenced by id or room name.
// CREATED -> STARTED marks the join; any status -> ENDED delegates to the
// end path; no transition leaves ENDED.
func (o *Orchestrator) UpdateCallStatus(ctx context.Context, sessionRef string, target calls.SessionStatus) (calls.Session, error) {
	s, err := o.getSession(ctx, sessionRef)
	if err != nil {
		return calls.Session{}, err
	}
	if s.Status == target {
		return s, nil
	}
	if s.Status == calls.SessionEnded {
		return calls.Session{}, fmt.Errorf("%w: session %s already ended", ErrInvalidState, s.ID)
	}

	switch target {
	case calls.SessionStarted:
		if s.Status != calls.SessionCreated {
			return calls.Session{}, fmt.Errorf("%w: cannot start a %s session", ErrInvalidState, s.Status)
		}
		now := o.clock().UTC()
		s.Status = calls.SessionStarted
		s.StartedAt = &now
		s.UpdatedAt = now

		m := o.systemMessage(s.QueryID, "Agent joined the call", now)
		m.CallSessionID = s.ID

		err = o.tx(ctx, func(ctx context.Context) error {
			if err := o.sessions.Update(ctx, s); err != nil {
				return err
			}
			return o.messages.Append(ctx, m)
		})
		if err != nil {
			return calls.Session{}, err
		}

		var fx effects
		fx.broadcast(gateway.EventActiveCallStarted, func() {
			o.cast.ToQuery(s.QueryID, gateway.EventActiveCallStarted, callEvent(s, false))
			o.cast.ToAdmins(gateway.EventActiveCallStarted, callEvent(s, false))
		})
		fx.broadcast(gateway.EventNewMessage, func() {
			o.cast.ToQuery(s.QueryID, gateway.EventNewMessage, m)
		})
		o.runEffects(ctx, &fx)
		return s, nil

	case calls.SessionEnded:
		var fx effects
		s, err = o.endSession(ctx, s, "Call ended", &fx)
		if err != nil {
			return calls.Session{}, err
		}
		o.runEffects(ctx, &fx)
		return s, nil

	default:
		return calls.Session{}, fmt.Errorf("%w: unknown session status %q", ErrInvalidArgument, target)
	}
}

// EndCall ends a session on behalf of a participant. The assigned agent, an
// elevated role, or the query's donor may end it.
func (o *Orchestrator) EndCall(ctx context.Context, sessionRef, actorID, role string) (calls.Session, error) {
	s, err := o.getSession(ctx, sessionRef)
	if err != nil {
		return calls.Session{}, err
	}
	q, err := o.getQuery(ctx, s.QueryID)
	if err != nil {
		return calls.Session{}, err
	}
	if actorID != q.DonorID {
		if err := requireAuthority(q, actorID, role); err != nil {
			return calls.Session{}, err
		}
	}
	if s.Status == calls.SessionEnded {
		return calls.Session{}, fmt.Errorf("%w: session %s already ended", ErrInvalidState, s.ID)
	}

	var fx effects
	s, err = o.endSession(ctx, s, "Call ended", &fx)
	if err != nil {
		return calls.Session{}, err
	}
	o.runEffects(ctx, &fx)
	return s, nil
}

// endSession is the single path out of the active states. Idempotent on an
// already-ended session. Room deletion is a deferred best-effort effect;
// the provider room expiring on its own covers a failed delete.
func (o *Orchestrator) endSession(ctx context.Context, s calls.Session, notice string, fx *effects) (calls.Session, error) {
	if s.Status == calls.SessionEnded {
		return s, nil
	}

	now := o.clock().UTC()
	s.Status = calls.SessionEnded
	s.EndedAt = &now
	s.UpdatedAt = now

	m := messages.Message{
		ID:            uuid.NewString(),
		QueryID:       s.QueryID,
		Content:       notice,
		Sender:        messages.SenderSystem,
		Type:          messages.TypeCallEnded,
		CallSessionID: s.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := o.tx(ctx, func(ctx context.Context) error {
		if err := o.sessions.Update(ctx, s); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return calls.Session{}, err
	}

	roomName := s.RoomName
	fx.add("delete room "+roomName, func(ctx context.Context) error {
		return o.rooms.DeleteRoom(ctx, roomName)
	})
	ended := s
	fx.broadcast(gateway.EventActiveCallEnded, func() {
		o.cast.ToQuery(ended.QueryID, gateway.EventActiveCallEnded, callEvent(ended, false))
		o.cast.ToAdmins(gateway.EventActiveCallEnded, callEvent(ended, false))
	})
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(ended.QueryID, gateway.EventNewMessage, m)
	})
	return s, nil
}

// endActiveSessions force-ends every active session on a query. Resolution
// and transfer cascade through here.
func (o *Orchestrator) endActiveSessions(ctx context.Context, queryID, notice string, fx *effects) error {
	active, err := o.sessions.FindActiveByQuery(ctx, queryID)
	if err != nil {
		return err
	}
	for _, s := range active {
		if _, err := o.endSession(ctx, s, notice, fx); err != nil {
			return err
		}
	}
	return nil
}

// getSession resolves a session either by its id or by the room handle the
// provider issued for it. Call clients only ever see the room name, so both
// work as a reference.
func (o *Orchestrator) getSession(ctx context.Context, ref string) (calls.Session, error) {
	s, err := o.sessions.Get(ctx, ref)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, calls.ErrNotFound) {
		return calls.Session{}, err
	}
	s, err = o.sessions.GetByRoom(ctx, ref)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			return calls.Session{}, fmt.Errorf("%w: call session %s", ErrNotFound, ref)
		}
		return calls.Session{}, err
	}
	return s, nil
}

/* ===================== SWEEPING ===================== */

// ExpireStale ends every active session created before now-olderThan.
// Called by the background sweeper; safe to run concurrently with normal
// traffic because endSession is idempotent.
func (o *Orchestrator) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := o.clock().UTC().Add(-olderThan)
	stale, err := o.sessions.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, s := range stale {
		var fx effects
		if _, err := o.endSession(ctx, s, "Call expired", &fx); err != nil {
			o.log.Error("expire session", "session_id", s.ID, "error", err)
			continue
		}
		o.runEffects(ctx, &fx)
		ended++
	}
	return ended, nil
}

// FlagOverruns appends a one-time notice to calls running past the standard
// duration. The session stays up; only the timeline and the admins hear
// about it.
func (o *Orchestrator) FlagOverruns(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := o.clock().UTC().Add(-threshold)
	overruns, err := o.sessions.ListOverrun(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, s := range overruns {
		existing, err := o.messages.ListByCallSession(ctx, s.ID)
		if err != nil {
			return flagged, err
		}
		already := false
		for _, m := range existing {
			if m.Content == overrunNotice {
				already = true
				break
			}
		}
		if already {
			continue
		}

		now := o.clock().UTC()
		m := o.systemMessage(s.QueryID, overrunNotice, now)
		m.CallSessionID = s.ID
		if err := o.messages.Append(ctx, m); err != nil {
			return flagged, err
		}

		var fx effects
		queryID := s.QueryID
		fx.broadcast(gateway.EventNewMessage, func() {
			o.cast.ToQuery(queryID, gateway.EventNewMessage, m)
			o.cast.ToAdmins(gateway.EventNewMessage, m)
		})
		o.runEffects(ctx, &fx)
		flagged++
	}
	return flagged, nil
}
