package lifecycle

import (
	"context"
	"sync"
)

// Agent is the slice of the staff directory the orchestrator needs:
// authorization metadata plus push/email targets.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DeviceToken string `json:"device_token,omitempty"`
}

// AgentDirectory resolves agent identities. Backed by the user service in
// production; tests use the in-memory directory.
type AgentDirectory interface {
	Agent(ctx context.Context, id string) (Agent, bool, error)
}

// MemoryDirectory is an in-memory AgentDirectory for tests and early development.
type MemoryDirectory struct {
	mu     sync.Mutex
	agents map[string]Agent
}

func NewMemoryDirectory(agents ...Agent) *MemoryDirectory {
	d := &MemoryDirectory{agents: map[string]Agent{}}
	for _, a := range agents {
		d.agents[a.ID] = a
	}
	return d
}

func (d *MemoryDirectory) Put(a Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[a.ID] = a
}

func (d *MemoryDirectory) Agent(ctx context.Context, id string) (Agent, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.agents[id]
	return a, ok, nil
}
