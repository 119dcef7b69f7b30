package gateway

import (
	"encoding/json"
	"testing"
)

func testClient(h *Hub, userID, role string, elevated bool) *Client {
	c := newClient(h, nil, userID, role, elevated)
	h.register(c)
	return c
}

func drain(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return env
	default:
		t.Fatalf("expected a frame")
		return Envelope{}
	}
}

func TestHub_QueryRoomBroadcastReachesMembers(t *testing.T) {
	h := NewHub(nil)
	admin := testClient(h, "a1", "supervisor", true)
	donor := testClient(h, "", "", false)
	outsider := testClient(h, "", "", false)

	h.JoinQuery(admin, "q1", "")
	h.JoinQuery(donor, "q1", "d1")

	h.ToQuery("q1", EventNewMessage, map[string]string{"query_id": "q1"})

	for _, c := range []*Client{admin, donor} {
		env := drain(t, c)
		if env.Event != EventNewMessage {
			t.Fatalf("expected newMessage, got %q", env.Event)
		}
	}
	select {
	case <-outsider.send:
		t.Fatalf("outsider should not receive query-room events")
	default:
	}
	if donor.DonorID != "d1" {
		t.Fatalf("expected donor tag, got %q", donor.DonorID)
	}
}

func TestHub_ElevatedAutoJoinsAdminsRoom(t *testing.T) {
	h := NewHub(nil)
	sup := testClient(h, "a1", "supervisor", true)
	agent := testClient(h, "a2", "agent", false)

	h.ToAdmins(EventNewQuery, map[string]string{"query_id": "q1"})

	env := drain(t, sup)
	if env.Event != EventNewQuery {
		t.Fatalf("expected newQuery, got %q", env.Event)
	}
	select {
	case <-agent.send:
		t.Fatalf("non-elevated agent should not be in admins room")
	default:
	}
}

func TestHub_PersonalChannel(t *testing.T) {
	h := NewHub(nil)
	a1 := testClient(h, "a1", "agent", false)
	a2 := testClient(h, "a2", "agent", false)

	h.ToUser("a1", EventQueryAssigned, map[string]string{"query_id": "q1", "agent_id": "a1"})

	env := drain(t, a1)
	if env.Event != EventQueryAssigned {
		t.Fatalf("expected queryAssigned, got %q", env.Event)
	}
	select {
	case <-a2.send:
		t.Fatalf("event leaked to another user's channel")
	default:
	}
}

func TestHub_UnregisterCleansMemberships(t *testing.T) {
	h := NewHub(nil)
	c := testClient(h, "a1", "agent", false)
	h.JoinQuery(c, "q1", "")

	if h.RoomSize(QueryRoom("q1")) != 1 {
		t.Fatalf("expected 1 member")
	}
	h.unregister(c)
	if h.RoomSize(QueryRoom("q1")) != 0 {
		t.Fatalf("expected membership cleanup on disconnect")
	}
	if h.RoomSize(UserRoom("a1")) != 0 {
		t.Fatalf("expected personal channel cleanup on disconnect")
	}
}

func TestHub_ShutdownDropsEverything(t *testing.T) {
	h := NewHub(nil)
	c := testClient(h, "a1", "agent", false)
	h.JoinQuery(c, "q1", "")

	h.Shutdown()
	if h.RoomSize(QueryRoom("q1")) != 0 {
		t.Fatalf("expected empty registry after shutdown")
	}
	if _, ok := <-c.send; ok {
		t.Fatalf("expected closed send channel after shutdown")
	}
}
