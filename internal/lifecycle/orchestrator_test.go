package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"supportdesk/internal/calls"
	"supportdesk/internal/gateway"
	"supportdesk/internal/messages"
	"supportdesk/internal/queries"
	"supportdesk/internal/rbac"
	"supportdesk/internal/rooms"
)

type castEvent struct {
	Scope  string // "query", "admins", "user"
	Target string
	Event  string
}

type castRecorder struct {
	mu     sync.Mutex
	events []castEvent
}

func (c *castRecorder) ToQuery(queryID, event string, payload any) {
	c.record("query", queryID, event)
}
func (c *castRecorder) ToAdmins(event string, payload any) { c.record("admins", "", event) }
func (c *castRecorder) ToUser(userID, event string, payload any) {
	c.record("user", userID, event)
}

func (c *castRecorder) record(scope, target, event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, castEvent{Scope: scope, Target: target, Event: event})
}

func (c *castRecorder) count(scope, event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Scope == scope && e.Event == event {
			n++
		}
	}
	return n
}

type stubProvider struct {
	mu       sync.Mutex
	rooms    int
	deleted  []string
	tokenErr error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreateRoom(ctx context.Context, mode string, expiry time.Time) (rooms.Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms++
	name := fmt.Sprintf("room-%d", p.rooms)
	return rooms.Room{Name: name, URL: "https://rooms.test/" + name}, nil
}

func (p *stubProvider) CreateToken(ctx context.Context, roomName string, privileged bool, mode string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	if privileged {
		return "host-" + roomName, nil
	}
	return "guest-" + roomName, nil
}

func (p *stubProvider) DeleteRoom(ctx context.Context, roomName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, roomName)
	return nil
}

type fixture struct {
	orc      *Orchestrator
	queries  *queries.MemoryStore
	messages *messages.MemoryStore
	sessions *calls.MemorySessionStore
	requests *calls.MemoryRequestStore
	cast     *castRecorder
	provider *stubProvider
	dir      *MemoryDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		queries:  queries.NewMemoryStore(),
		messages: messages.NewMemoryStore(),
		sessions: calls.NewMemorySessionStore(),
		requests: calls.NewMemoryRequestStore(),
		cast:     &castRecorder{},
		provider: &stubProvider{},
		dir: NewMemoryDirectory(
			Agent{ID: "agent-1", Name: "Asha", Email: "asha@example.com", Role: rbac.RoleAgent, DeviceToken: "dev-1"},
			Agent{ID: "agent-2", Name: "Ben", Email: "ben@example.com", Role: rbac.RoleAgent},
			Agent{ID: "sup-1", Name: "Sana", Email: "sana@example.com", Role: rbac.RoleSupervisor},
		),
	}

	orc, err := NewOrchestrator(Deps{
		Queries:  f.queries,
		Messages: f.messages,
		Sessions: f.sessions,
		Requests: f.requests,
		Agents:   f.dir,
		Rooms:    f.provider,
		Cast:     f.cast,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	f.orc = orc
	return f
}

func (f *fixture) mustCreateQuery(t *testing.T, donorID string) queries.Query {
	t.Helper()
	q, err := f.orc.CreateQuery(context.Background(), NewQuery{
		DonorID:   donorID,
		DonorName: "Dee",
		Content:   "my test kit will not pair",
	})
	if err != nil {
		t.Fatalf("CreateQuery: %v", err)
	}
	return q
}

func (f *fixture) mustAssign(t *testing.T, queryID, agentID string) queries.Query {
	t.Helper()
	q, err := f.orc.AcceptQuery(context.Background(), queryID, agentID)
	if err != nil {
		t.Fatalf("AcceptQuery: %v", err)
	}
	return q
}

func TestCreateQuery_OneActivePerDonor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.mustCreateQuery(t, "donor-1")
	if q.Status != queries.StatusPendingReply {
		t.Fatalf("expected PENDING_REPLY, got %s", q.Status)
	}

	if _, err := f.orc.CreateQuery(ctx, NewQuery{DonorID: "donor-1", DonorName: "Dee", Content: "another"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// A terminal query frees the slot.
	f.mustAssign(t, q.ID, "agent-1")
	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-1", rbac.RoleAgent); err != nil {
		t.Fatalf("ResolveQuery: %v", err)
	}
	if _, err := f.orc.CreateQuery(ctx, NewQuery{DonorID: "donor-1", DonorName: "Dee", Content: "new issue"}); err != nil {
		t.Fatalf("expected create after resolve, got %v", err)
	}

	if n := f.cast.count("admins", gateway.EventNewQuery); n != 2 {
		t.Fatalf("expected 2 newQuery broadcasts, got %d", n)
	}
}

func TestAcceptQuery_AssignsAndAnnounces(t *testing.T) {
	f := newFixture(t)
	q := f.mustCreateQuery(t, "donor-1")

	q = f.mustAssign(t, q.ID, "agent-1")
	if q.Status != queries.StatusInProgress || q.AssignedAgentID != "agent-1" {
		t.Fatalf("unexpected query after accept: %+v", q)
	}
	if n := f.cast.count("user", gateway.EventQueryAssigned); n != 1 {
		t.Fatalf("expected queryAssigned to the agent, got %d", n)
	}

	msgs, err := f.messages.ListByQuery(context.Background(), q.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListByQuery: %v", err)
	}
	// Intake message plus the acceptance system message.
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestAcceptQuery_UnknownAgent(t *testing.T) {
	f := newFixture(t)
	q := f.mustCreateQuery(t, "donor-1")
	if _, err := f.orc.AcceptQuery(context.Background(), q.ID, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendMessage_DrivesStatusAlternation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")

	if _, err := f.orc.SendMessage(ctx, ChatMessage{QueryID: q.ID, Sender: messages.SenderDonor, DonorID: "donor-1", Content: "still broken"}); err != nil {
		t.Fatalf("donor message: %v", err)
	}
	got, _ := f.queries.Get(ctx, q.ID)
	if got.Status != queries.StatusPendingReply {
		t.Fatalf("expected PENDING_REPLY after donor message, got %s", got.Status)
	}

	if _, err := f.orc.SendMessage(ctx, ChatMessage{QueryID: q.ID, Sender: messages.SenderAdmin, AgentID: "agent-1", Content: "try a restart"}); err != nil {
		t.Fatalf("admin message: %v", err)
	}
	got, _ = f.queries.Get(ctx, q.ID)
	if got.Status != queries.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS after admin message, got %s", got.Status)
	}
}

func TestSendMessage_TerminalQueryKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")
	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-1", rbac.RoleAgent); err != nil {
		t.Fatalf("ResolveQuery: %v", err)
	}

	m, err := f.orc.SendMessage(ctx, ChatMessage{QueryID: q.ID, Sender: messages.SenderDonor, DonorID: "donor-1", Content: "thanks!"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected the message recorded")
	}
	got, _ := f.queries.Get(ctx, q.ID)
	if got.Status != queries.StatusResolved {
		t.Fatalf("expected RESOLVED to stick, got %s", got.Status)
	}
}

func TestResolveQuery_UnassignedAgentForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")

	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-2", rbac.RoleAgent); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// A supervisor may resolve without assignment.
	if _, err := f.orc.ResolveQuery(ctx, q.ID, "sup-1", rbac.RoleSupervisor); err != nil {
		t.Fatalf("supervisor resolve: %v", err)
	}
}

func TestResolveQuery_TerminalIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")

	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-1", rbac.RoleAgent); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-1", rbac.RoleAgent); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on re-resolve, got %v", err)
	}
	if _, err := f.orc.TransferQuery(ctx, q.ID, "agent-1", rbac.RoleAgent, "agent-2", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on transfer-after-resolve, got %v", err)
	}
}

func TestResolveQuery_EndsActiveCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")

	// Seed two active sessions directly: the store contract tolerates
	// historical invariant violations and resolve must clean them all up.
	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		s := calls.Session{
			ID:        fmt.Sprintf("sess-%d", i),
			QueryID:   q.ID,
			AgentID:   "agent-1",
			RoomName:  fmt.Sprintf("seeded-%d", i),
			Mode:      calls.ModeVideo,
			Status:    calls.SessionStarted,
			StartedAt: &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := f.sessions.Create(ctx, s); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	if _, err := f.orc.ResolveQuery(ctx, q.ID, "agent-1", rbac.RoleAgent); err != nil {
		t.Fatalf("ResolveQuery: %v", err)
	}

	active, _ := f.sessions.FindActiveByQuery(ctx, q.ID)
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}

	msgs, _ := f.messages.ListByQuery(ctx, q.ID, 50, 0)
	ended := 0
	for _, m := range msgs {
		if m.Type == messages.TypeCallEnded {
			ended++
		}
	}
	if ended != 2 {
		t.Fatalf("expected 2 call-ended messages, got %d", ended)
	}
	if len(f.provider.deleted) != 2 {
		t.Fatalf("expected 2 room deletions, got %d", len(f.provider.deleted))
	}
}

func TestTransferQuery_TargetMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")

	if _, err := f.orc.TransferQuery(ctx, q.ID, "agent-1", rbac.RoleAgent, "ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown target, got %v", err)
	}

	got, err := f.orc.TransferQuery(ctx, q.ID, "agent-1", rbac.RoleAgent, "agent-2", "needs device expertise")
	if err != nil {
		t.Fatalf("TransferQuery: %v", err)
	}
	if got.Status != queries.StatusTransferred || got.TransferredToID != "agent-2" {
		t.Fatalf("unexpected query after transfer: %+v", got)
	}
	if n := f.cast.count("user", gateway.EventQueryTransfer); n != 1 {
		t.Fatalf("expected queryTransfer to the target agent, got %d", n)
	}
}

func TestRemoveQuery_ElevatedOnlyAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.mustCreateQuery(t, "donor-1")
	f.mustAssign(t, q.ID, "agent-1")
	if _, err := f.orc.RequestCall(ctx, q.ID, calls.ModeAudio, ""); err != nil {
		t.Fatalf("RequestCall: %v", err)
	}

	if err := f.orc.RemoveQuery(ctx, q.ID, rbac.RoleAgent); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for agent removal, got %v", err)
	}
	if err := f.orc.RemoveQuery(ctx, q.ID, rbac.RoleSupervisor); err != nil {
		t.Fatalf("RemoveQuery: %v", err)
	}

	if _, err := f.queries.Get(ctx, q.ID); !errors.Is(err, queries.ErrNotFound) {
		t.Fatalf("expected query gone, got %v", err)
	}
	msgs, _ := f.messages.ListByQuery(ctx, q.ID, 50, 0)
	if len(msgs) != 0 {
		t.Fatalf("expected messages gone, got %d", len(msgs))
	}
	reqs, _ := f.requests.ListByQuery(ctx, q.ID, 50, 0)
	if len(reqs) != 0 {
		t.Fatalf("expected requests gone, got %d", len(reqs))
	}
}

func TestMarkMessagesRead_Broadcasts(t *testing.T) {
	f := newFixture(t)
	q := f.mustCreateQuery(t, "donor-1")

	if err := f.orc.MarkMessagesRead(context.Background(), q.ID, messages.SenderAdmin, "agent-1"); err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n := f.cast.count("query", gateway.EventMessagesRead); n != 1 {
		t.Fatalf("expected messagesRead broadcast, got %d", n)
	}
	if err := f.orc.MarkMessagesRead(context.Background(), "missing", messages.SenderAdmin, "agent-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
