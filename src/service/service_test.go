package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsehub/presence/src/directory"
	"github.com/pulsehub/presence/src/hub"
	"github.com/pulsehub/presence/src/presence"
	"github.com/pulsehub/presence/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu       sync.Mutex
	written  []types.Event
	readCh   chan types.Frame
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan types.Frame, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := v.(types.Event); ok {
		m.written = append(m.written, ev)
	}
	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case f := <-m.readCh:
		if ptr, ok := v.(*types.Frame); ok {
			*ptr = f
		}
		return nil
	case <-m.closedCh:
		return &closeError{}
	}
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) eventsOfType(typ string) []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Event
	for _, ev := range m.written {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type closeError struct{}

func (e *closeError) Error() string { return "connection closed" }

func newTestService(t *testing.T) (*Service, *hub.Hub) {
	t.Helper()
	dir := directory.New()
	tracker := presence.NewTracker(dir, nil, zerolog.Nop())
	h := hub.New(dir, tracker, zerolog.Nop())
	tracker.SetBroadcaster(h)
	go h.Run()
	t.Cleanup(func() { h.Stop() })

	svc := New(h, dir, zerolog.Nop())
	h.RegisterHandler(hub.HubMessage, func(c *hub.Client, f types.Frame) error {
		return svc.RelayMessage(c.UserID, c.Peer, f.Body)
	})
	return svc, h
}

func connect(t *testing.T, h *hub.Hub, id, userID, kind, peer string) (*hub.Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client := hub.NewClient(id, userID, conn, h, 0)
	client.Kind = kind
	client.Peer = peer
	h.Register(client)
	go client.WritePump()
	go client.ReadPump()
	time.Sleep(20 * time.Millisecond)
	return client, conn
}

func TestOnlineUsersSorted(t *testing.T) {
	svc, h := newTestService(t)

	_, _ = connect(t, h, "c-1", "carol", hub.HubPresence, "")
	_, _ = connect(t, h, "a-1", "alice", hub.HubPresence, "")
	_, _ = connect(t, h, "b-1", "bob", hub.HubPresence, "")

	users := svc.OnlineUsers()
	want := []string{"alice", "bob", "carol"}
	if len(users) != len(want) {
		t.Fatalf("expected %v, got %v", want, users)
	}
	for i := range want {
		if users[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, users)
		}
	}
}

func TestMessageDeliveredToGroupAndOtherDevices(t *testing.T) {
	_, h := newTestService(t)

	// Alice and Bob both have the conversation open; Bob also has a
	// mobile device showing a banner elsewhere.
	_, aliceConn := connect(t, h, "a-1", "alice", hub.HubMessage, "bob")
	_, bobConv := connect(t, h, "b-1", "bob", hub.HubMessage, "alice")
	_, bobMobile := connect(t, h, "b-2", "bob", hub.HubPresence, "")

	aliceConn.readCh <- types.Frame{Body: "lunch?"}
	time.Sleep(50 * time.Millisecond)

	conv := types.ConversationID("alice", "bob")
	for name, conn := range map[string]*mockConn{"alice": aliceConn, "bob-conv": bobConv, "bob-mobile": bobMobile} {
		msgs := conn.eventsOfType(types.EventNewMessage)
		if len(msgs) != 1 {
			t.Fatalf("%s: expected 1 message, got %d", name, len(msgs))
		}
		if msgs[0].Data["body"] != "lunch?" {
			t.Errorf("%s: unexpected body %v", name, msgs[0].Data["body"])
		}
		if msgs[0].Data["conversation_id"] != conv {
			t.Errorf("%s: unexpected conversation %v", name, msgs[0].Data["conversation_id"])
		}
		if msgs[0].Data["sender_id"] != "alice" {
			t.Errorf("%s: unexpected sender %v", name, msgs[0].Data["sender_id"])
		}
	}
}

func TestMessageToOfflinePeerReachesNobodyButDoesNotFail(t *testing.T) {
	svc, h := newTestService(t)

	_, aliceConn := connect(t, h, "a-1", "alice", hub.HubMessage, "bob")

	if err := svc.RelayMessage("alice", "bob", "anyone there?"); err != nil {
		t.Fatalf("relay to offline peer must not fail: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Alice still sees her own message in the open conversation.
	if n := len(aliceConn.eventsOfType(types.EventNewMessage)); n != 1 {
		t.Errorf("expected sender echo in group, got %d", n)
	}
}

func TestRelayMessageValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.RelayMessage("alice", "", "hi"); err == nil {
		t.Error("expected error for missing recipient")
	}
	if err := svc.RelayMessage("alice", "bob", ""); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestLikeNotificationReachesAllTargetDevices(t *testing.T) {
	svc, h := newTestService(t)

	_, bobConn1 := connect(t, h, "b-1", "bob", hub.HubPresence, "")
	_, bobConn2 := connect(t, h, "b-2", "bob", hub.HubLike, "")
	_, carolConn := connect(t, h, "c-1", "carol", hub.HubPresence, "")

	if err := svc.NotifyLiked("alice", "bob"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	for name, conn := range map[string]*mockConn{"bob-1": bobConn1, "bob-2": bobConn2} {
		likes := conn.eventsOfType(types.EventLiked)
		if len(likes) != 1 {
			t.Fatalf("%s: expected 1 like event, got %d", name, len(likes))
		}
		if likes[0].Data["from_user_id"] != "alice" {
			t.Errorf("%s: unexpected liker %v", name, likes[0].Data)
		}
	}
	if n := len(carolConn.eventsOfType(types.EventLiked)); n != 0 {
		t.Errorf("carol must not receive the like, got %d", n)
	}
}

func TestLikeForOfflineTargetIsFireAndForget(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.NotifyLiked("alice", "ghost"); err != nil {
		t.Errorf("like for offline target must not fail: %v", err)
	}
	if err := svc.NotifyLiked("alice", ""); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestConnectionsForUser(t *testing.T) {
	svc, h := newTestService(t)

	_, _ = connect(t, h, "b-1", "bob", hub.HubPresence, "")
	_, _ = connect(t, h, "b-2", "bob", hub.HubPresence, "")

	if n := len(svc.ConnectionsForUser("bob")); n != 2 {
		t.Errorf("expected 2 connections, got %d", n)
	}
	if n := len(svc.ConnectionsForUser("ghost")); n != 0 {
		t.Errorf("expected no connections for ghost, got %d", n)
	}
}
