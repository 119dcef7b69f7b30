package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"supportdesk/internal/calls"
	"supportdesk/internal/gateway"
	"supportdesk/internal/messages"
	"supportdesk/internal/notify"
	"supportdesk/internal/queries"
	"supportdesk/internal/rbac"
	"supportdesk/internal/rooms"

	"github.com/google/uuid"
)

// Broadcaster is the slice of the gateway the orchestrator emits through.
type Broadcaster interface {
	ToQuery(queryID, event string, payload any)
	ToAdmins(event string, payload any)
	ToUser(userID, event string, payload any)
}

// TxRunner wraps fn in a transactional boundary for the local store writes.
// The in-memory stores use the passthrough runner; the Postgres wiring runs
// fn inside a single database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Deps carries the orchestrator's collaborators. Queries, Messages,
// Sessions, Requests, Rooms and Cast are required; the rest default.
type Deps struct {
	Queries  queries.Store
	Messages messages.Store
	Sessions calls.SessionStore
	Requests calls.RequestStore
	Agents   AgentDirectory
	Rooms    rooms.Provider
	Cast     Broadcaster

	Push  notify.Dispatcher
	Email notify.Dispatcher

	Locks Locker
	Tx    TxRunner
	Log   *slog.Logger

	// RoomLifetime bounds provider rooms created by this orchestrator.
	RoomLifetime time.Duration

	// RequestRecency is the fallback window for suppressing a duplicate
	// CALL_STARTED announcement when a direct start follows an accepted
	// request but the caller did not thread the originating request id.
	RequestRecency time.Duration
}

// Orchestrator validates preconditions, mutates the stores, and queues
// gateway broadcasts for every query/call lifecycle action.
type Orchestrator struct {
	queries  queries.Store
	messages messages.Store
	sessions calls.SessionStore
	requests calls.RequestStore
	agents   AgentDirectory
	rooms    rooms.Provider
	cast     Broadcaster

	push  notify.Dispatcher
	email notify.Dispatcher

	locks Locker
	tx    TxRunner
	log   *slog.Logger

	roomLifetime   time.Duration
	requestRecency time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewOrchestrator(d Deps) (*Orchestrator, error) {
	if d.Queries == nil || d.Messages == nil || d.Sessions == nil || d.Requests == nil {
		return nil, errors.New("lifecycle: stores are required")
	}
	if d.Rooms == nil {
		return nil, errors.New("lifecycle: room provider is required")
	}
	if d.Cast == nil {
		return nil, errors.New("lifecycle: broadcaster is required")
	}
	if d.Agents == nil {
		d.Agents = NewMemoryDirectory()
	}
	if d.Locks == nil {
		d.Locks = NewMemoryLocker()
	}
	if d.Tx == nil {
		d.Tx = passthroughTx
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.RoomLifetime <= 0 {
		d.RoomLifetime = 2 * time.Hour
	}
	if d.RequestRecency <= 0 {
		d.RequestRecency = 5 * time.Second
	}

	return &Orchestrator{
		queries:        d.Queries,
		messages:       d.Messages,
		sessions:       d.Sessions,
		requests:       d.Requests,
		agents:         d.Agents,
		rooms:          d.Rooms,
		cast:           d.Cast,
		push:           d.Push,
		email:          d.Email,
		locks:          d.Locks,
		tx:             d.Tx,
		log:            d.Log,
		roomLifetime:   d.RoomLifetime,
		requestRecency: d.RequestRecency,
		clock:          time.Now,
	}, nil
}

/* ===================== EVENT PAYLOADS ===================== */

// QueryEvent is the payload for query-level gateway events.
type QueryEvent struct {
	QueryID   string `json:"query_id"`
	DonorID   string `json:"donor_id,omitempty"`
	DonorName string `json:"donor_name,omitempty"`
	Status    string `json:"status,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Note      string `json:"note,omitempty"`
}

// CallEvent is the payload for call-level gateway events. Tokens are
// per-role: the donor token rides the query-room emission only.
type CallEvent struct {
	SessionID  string `json:"session_id"`
	QueryID    string `json:"query_id"`
	AgentID    string `json:"agent_id,omitempty"`
	RoomName   string `json:"room_name"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	DonorToken string `json:"donor_token,omitempty"`
}

func callEvent(s calls.Session, withDonorToken bool) CallEvent {
	ev := CallEvent{
		SessionID: s.ID,
		QueryID:   s.QueryID,
		AgentID:   s.AgentID,
		RoomName:  s.RoomName,
		Mode:      string(s.Mode),
		Status:    string(s.Status),
	}
	if withDonorToken {
		ev.DonorToken = s.DonorToken
	}
	return ev
}

/* ===================== QUERY LIFECYCLE ===================== */

// NewQuery is the donor intake input.
type NewQuery struct {
	DonorID   string `json:"donor_id"`
	DonorName string `json:"donor_name"`
	TestName  string `json:"test_name,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Device    string `json:"device,omitempty"`
	Content   string `json:"content"`
}

// CreateQuery opens a support case for a donor. A donor may hold at most
// one non-terminal query at a time.
func (o *Orchestrator) CreateQuery(ctx context.Context, in NewQuery) (queries.Query, error) {
	if in.DonorID == "" || in.Content == "" {
		return queries.Query{}, fmt.Errorf("%w: donor_id and content are required", ErrInvalidArgument)
	}

	if existing, ok, err := o.queries.FindActiveByDonor(ctx, in.DonorID); err != nil {
		return queries.Query{}, err
	} else if ok {
		return queries.Query{}, fmt.Errorf("%w: donor already has an active query %s", ErrConflict, existing.ID)
	}

	now := o.clock().UTC()
	q := queries.Query{
		ID:        uuid.NewString(),
		DonorID:   in.DonorID,
		DonorName: in.DonorName,
		TestName:  in.TestName,
		Stage:     in.Stage,
		Device:    in.Device,
		Status:    queries.StatusPendingReply,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m := messages.Message{
		ID:        uuid.NewString(),
		QueryID:   q.ID,
		Content:   in.Content,
		Sender:    messages.SenderDonor,
		DonorID:   in.DonorID,
		Type:      messages.TypeQuery,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := o.tx(ctx, func(ctx context.Context) error {
		if err := o.queries.Create(ctx, q); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return queries.Query{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventNewQuery, func() {
		o.cast.ToAdmins(gateway.EventNewQuery, QueryEvent{
			QueryID:   q.ID,
			DonorID:   q.DonorID,
			DonorName: q.DonorName,
			Status:    string(q.Status),
		})
	})
	o.runEffects(ctx, &fx)
	return q, nil
}

// AcceptQuery assigns an agent and moves the query to IN_PROGRESS.
func (o *Orchestrator) AcceptQuery(ctx context.Context, queryID, agentID string) (queries.Query, error) {
	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return queries.Query{}, err
	}
	if q.Status.Terminal() {
		return queries.Query{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}

	agent, err := o.getAgent(ctx, agentID)
	if err != nil {
		return queries.Query{}, err
	}

	now := o.clock().UTC()
	q.Status = queries.StatusInProgress
	q.AssignedAgentID = agent.ID
	q.UpdatedAt = now

	m := o.systemMessage(q.ID, fmt.Sprintf("%s accepted the query", agent.Name), now)

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.queries.Update(ctx, q); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return queries.Query{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventQueryAssigned, func() {
		o.cast.ToUser(agent.ID, gateway.EventQueryAssigned, QueryEvent{
			QueryID: q.ID,
			AgentID: agent.ID,
			Status:  string(q.Status),
		})
	})
	fx.broadcast(gateway.EventQueryStatusChange, func() {
		o.cast.ToQuery(q.ID, gateway.EventQueryStatusChange, QueryEvent{
			QueryID: q.ID,
			Status:  string(q.Status),
			AgentID: agent.ID,
		})
	})
	fx.broadcast(gateway.EventTicketStatus, func() {
		o.cast.ToAdmins(gateway.EventTicketStatus, QueryEvent{
			QueryID: q.ID,
			Status:  string(q.Status),
			AgentID: agent.ID,
		})
	})
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventNewMessage, m)
	})
	o.runEffects(ctx, &fx)
	return q, nil
}

// ResolveQuery closes a query. Only the assigned agent or an elevated role
// may resolve; every active call session is force-ended first.
func (o *Orchestrator) ResolveQuery(ctx context.Context, queryID, agentID, role string) (queries.Query, error) {
	release, err := o.locks.Acquire(ctx, queryID)
	if err != nil {
		return queries.Query{}, err
	}
	defer release()

	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return queries.Query{}, err
	}
	if q.Status.Terminal() {
		return queries.Query{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}
	if err := requireAuthority(q, agentID, role); err != nil {
		return queries.Query{}, err
	}

	agent, err := o.getAgent(ctx, agentID)
	if err != nil {
		return queries.Query{}, err
	}

	now := o.clock().UTC()

	var fx effects
	if err := o.endActiveSessions(ctx, q.ID, "Call ended: query resolved", &fx); err != nil {
		return queries.Query{}, err
	}

	q.Status = queries.StatusResolved
	q.ResolvedByID = agent.ID
	q.UpdatedAt = now

	m := o.systemMessage(q.ID, fmt.Sprintf("Query resolved by %s", agent.Name), now)

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.queries.Update(ctx, q); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return queries.Query{}, err
	}

	fx.broadcast(gateway.EventQueryResolved, func() {
		ev := QueryEvent{QueryID: q.ID, Status: string(q.Status), AgentID: agent.ID}
		o.cast.ToQuery(q.ID, gateway.EventQueryResolved, ev)
		o.cast.ToAdmins(gateway.EventQueryResolved, ev)
	})
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventNewMessage, m)
	})
	o.runEffects(ctx, &fx)
	return q, nil
}

// TransferQuery hands a query to another agent, force-ending active calls
// the same way resolution does. The email to the target agent is
// fire-and-forget.
func (o *Orchestrator) TransferQuery(ctx context.Context, queryID, agentID, role, targetAgentID, note string) (queries.Query, error) {
	release, err := o.locks.Acquire(ctx, queryID)
	if err != nil {
		return queries.Query{}, err
	}
	defer release()

	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return queries.Query{}, err
	}
	if q.Status.Terminal() {
		return queries.Query{}, fmt.Errorf("%w: query %s is %s", ErrInvalidState, q.ID, q.Status)
	}
	if err := requireAuthority(q, agentID, role); err != nil {
		return queries.Query{}, err
	}

	target, ok, err := o.agents.Agent(ctx, targetAgentID)
	if err != nil {
		return queries.Query{}, err
	}
	if !ok {
		return queries.Query{}, fmt.Errorf("%w: target agent %s", ErrNotFound, targetAgentID)
	}

	now := o.clock().UTC()

	var fx effects
	if err := o.endActiveSessions(ctx, q.ID, "Call ended: query transferred", &fx); err != nil {
		return queries.Query{}, err
	}

	q.Status = queries.StatusTransferred
	q.TransferredToID = target.ID
	q.TransferredToName = target.Name
	q.TransferNote = note
	q.UpdatedAt = now

	content := fmt.Sprintf("Query transferred to %s", target.Name)
	if note != "" {
		content += ": " + note
	}
	m := o.systemMessage(q.ID, content, now)

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.queries.Update(ctx, q); err != nil {
			return err
		}
		return o.messages.Append(ctx, m)
	})
	if err != nil {
		return queries.Query{}, err
	}

	fx.broadcast(gateway.EventQueryTransfer, func() {
		ev := QueryEvent{QueryID: q.ID, Status: string(q.Status), AgentID: target.ID, Note: note}
		o.cast.ToUser(target.ID, gateway.EventQueryTransfer, ev)
		o.cast.ToAdmins(gateway.EventTicketTransferred, ev)
		o.cast.ToQuery(q.ID, gateway.EventQueryTransfer, ev)
	})
	if o.email != nil {
		fx.add("transfer email", func(ctx context.Context) error {
			return o.email.Notify(ctx, target.Email,
				"Query transferred to you",
				fmt.Sprintf("Query %s from %s was transferred to you. %s", q.ID, q.DonorName, note),
				map[string]string{"query_id": q.ID},
			)
		})
	}
	o.runEffects(ctx, &fx)
	return q, nil
}

/* ===================== CHAT ===================== */

// ChatMessage is a donor or admin chat input.
type ChatMessage struct {
	QueryID string
	Sender  messages.SenderType
	AgentID string
	DonorID string
	Content string
}

// SendMessage appends a chat message and lets the sender type drive the
// IN_PROGRESS/PENDING_REPLY alternation. A message arriving on a terminal
// query is recorded but never changes status.
func (o *Orchestrator) SendMessage(ctx context.Context, in ChatMessage) (messages.Message, error) {
	if in.Content == "" {
		return messages.Message{}, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	if in.Sender != messages.SenderAdmin && in.Sender != messages.SenderDonor {
		return messages.Message{}, fmt.Errorf("%w: sender must be ADMIN or DONOR", ErrInvalidArgument)
	}

	q, err := o.getQuery(ctx, in.QueryID)
	if err != nil {
		return messages.Message{}, err
	}

	now := o.clock().UTC()
	m := messages.Message{
		ID:        uuid.NewString(),
		QueryID:   q.ID,
		Content:   in.Content,
		Sender:    in.Sender,
		AgentID:   in.AgentID,
		DonorID:   in.DonorID,
		Type:      messages.TypeChat,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next, changed := NextStatus(q.Status, in.Sender)
	if changed {
		q.Status = next
		q.UpdatedAt = now
	}

	err = o.tx(ctx, func(ctx context.Context) error {
		if err := o.messages.Append(ctx, m); err != nil {
			return err
		}
		if changed {
			return o.queries.Update(ctx, q)
		}
		return nil
	})
	if err != nil {
		return messages.Message{}, err
	}

	var fx effects
	fx.broadcast(gateway.EventNewMessage, func() {
		o.cast.ToQuery(q.ID, gateway.EventNewMessage, m)
	})
	fx.broadcast(gateway.EventEnhancedMessage, func() {
		o.cast.ToAdmins(gateway.EventEnhancedMessage, struct {
			messages.Message
			DonorName string `json:"donor_name,omitempty"`
			Status    string `json:"status"`
		}{Message: m, DonorName: q.DonorName, Status: string(q.Status)})
	})
	if changed {
		fx.broadcast(gateway.EventQueryStatusChange, func() {
			ev := QueryEvent{QueryID: q.ID, Status: string(q.Status), AgentID: in.AgentID}
			o.cast.ToQuery(q.ID, gateway.EventQueryStatusChange, ev)
			o.cast.ToAdmins(gateway.EventTicketStatus, ev)
		})
	}
	o.runEffects(ctx, &fx)
	return m, nil
}

// MarkMessagesRead tells everyone viewing the query that one side caught
// up. Read state is not persisted; clients reconcile via the REST read path.
func (o *Orchestrator) MarkMessagesRead(ctx context.Context, queryID string, reader messages.SenderType, readerID string) error {
	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return err
	}

	var fx effects
	fx.broadcast(gateway.EventMessagesRead, func() {
		o.cast.ToQuery(q.ID, gateway.EventMessagesRead, struct {
			QueryID  string `json:"query_id"`
			Reader   string `json:"reader"`
			ReaderID string `json:"reader_id,omitempty"`
		}{QueryID: q.ID, Reader: string(reader), ReaderID: readerID})
	})
	o.runEffects(ctx, &fx)
	return nil
}

// RemoveQuery deletes a query and everything it owns. Elevated roles only;
// this is the explicit admin removal path, not part of normal lifecycle.
func (o *Orchestrator) RemoveQuery(ctx context.Context, queryID, role string) error {
	if !rbac.IsElevated(role) {
		return fmt.Errorf("%w: query removal requires an elevated role", ErrForbidden)
	}
	q, err := o.getQuery(ctx, queryID)
	if err != nil {
		return err
	}

	return o.tx(ctx, func(ctx context.Context) error {
		if err := o.messages.DeleteByQuery(ctx, q.ID); err != nil {
			return err
		}
		if err := o.sessions.DeleteByQuery(ctx, q.ID); err != nil {
			return err
		}
		if err := o.requests.DeleteByQuery(ctx, q.ID); err != nil {
			return err
		}
		return o.queries.Delete(ctx, q.ID)
	})
}

/* ===================== HELPERS ===================== */

func (o *Orchestrator) getQuery(ctx context.Context, id string) (queries.Query, error) {
	q, err := o.queries.Get(ctx, id)
	if err != nil {
		if errors.Is(err, queries.ErrNotFound) {
			return queries.Query{}, fmt.Errorf("%w: query %s", ErrNotFound, id)
		}
		return queries.Query{}, err
	}
	return q, nil
}

func (o *Orchestrator) getAgent(ctx context.Context, id string) (Agent, error) {
	a, ok, err := o.agents.Agent(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	if !ok {
		return Agent{}, fmt.Errorf("%w: agent %s", ErrNotFound, id)
	}
	return a, nil
}

// requireAuthority allows the assigned agent or an elevated role.
func requireAuthority(q queries.Query, agentID, role string) error {
	if agentID != "" && agentID == q.AssignedAgentID {
		return nil
	}
	if rbac.IsElevated(role) {
		return nil
	}
	return fmt.Errorf("%w: agent %s is not assigned to query %s", ErrForbidden, agentID, q.ID)
}

func (o *Orchestrator) systemMessage(queryID, content string, now time.Time) messages.Message {
	return messages.Message{
		ID:        uuid.NewString(),
		QueryID:   queryID,
		Content:   content,
		Sender:    messages.SenderSystem,
		Type:      messages.TypeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
