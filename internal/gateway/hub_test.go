package gateway

import (
	"testing"

	"zenchat/internal/auth"
	"zenchat/internal/chat"
)

func testClient(userID int64, username string) *Client {
	return newClient(auth.Identity{UserID: userID, Username: username}, nil, 16)
}

// drainEvents empties a client's outbound buffer and counts frames per type.
func drainEvents(c *Client) map[string]int {
	out := map[string]int{}
	for {
		select {
		case ev := <-c.send:
			out[ev.Type]++
		default:
			return out
		}
	}
}

func TestDirectoryLastWriterWins(t *testing.T) {
	h := NewHub()

	first := testClient(1, "alice")
	second := testClient(1, "alice")

	h.Register(first)
	if h.Lookup(1) != first {
		t.Fatal("expected first connection in directory")
	}

	h.Register(second)
	if h.Lookup(1) != second {
		t.Fatal("expected second connection to displace the first")
	}
}

func TestRemoveIsGuardedAndIdempotent(t *testing.T) {
	h := NewHub()

	stale := testClient(1, "alice")
	fresh := testClient(1, "alice")

	h.Register(stale)
	h.Register(fresh)

	// The stale connection's cleanup must not knock the reconnect offline.
	h.Remove(stale)
	if h.Lookup(1) != fresh {
		t.Fatal("stale removal displaced the fresh connection")
	}

	h.Remove(fresh)
	if h.Lookup(1) != nil {
		t.Fatal("expected user offline after removal")
	}
	h.Remove(fresh) // no-op
	if h.Lookup(1) != nil {
		t.Fatal("repeat removal must stay offline")
	}
}

func TestRemoveClearsRoomMemberships(t *testing.T) {
	h := NewHub()

	a := testClient(1, "alice")
	b := testClient(2, "bob")
	h.Register(a)
	h.Register(b)
	h.Join(a, "conv_1_2")
	h.Join(b, "conv_1_2")

	h.Remove(a)

	if n := h.BroadcastRoom("conv_1_2", nil, Event{Type: "x"}); n != 1 {
		t.Fatalf("expected only b left in room, got %d deliveries", n)
	}
	if got := drainEvents(b)["x"]; got != 1 {
		t.Fatalf("expected b to receive the broadcast, got %d", got)
	}
	if got := drainEvents(a)["x"]; got != 0 {
		t.Fatalf("removed client must not receive broadcasts, got %d", got)
	}
}

func TestBroadcastRoomExcludesSender(t *testing.T) {
	h := NewHub()

	a := testClient(1, "alice")
	b := testClient(2, "bob")
	c := testClient(3, "carol")
	for _, cl := range []*Client{a, b, c} {
		h.Register(cl)
		h.Join(cl, "conv_1_2")
	}

	h.BroadcastRoom("conv_1_2", a, Event{Type: EvtMessageNew})

	if got := drainEvents(a)[EvtMessageNew]; got != 0 {
		t.Fatalf("sender must be excluded from room broadcast, got %d", got)
	}
	if got := drainEvents(b)[EvtMessageNew]; got != 1 {
		t.Fatalf("expected exactly one frame for b, got %d", got)
	}
	if got := drainEvents(c)[EvtMessageNew]; got != 1 {
		t.Fatalf("expected exactly one frame for c, got %d", got)
	}
}

func TestFanoutReceiverOffline(t *testing.T) {
	h := NewHub()

	sender := testClient(1, "alice")
	observer := testClient(3, "carol")
	h.Register(sender)
	h.Register(observer)
	h.Join(sender, "conv_1_2")
	h.Join(observer, "conv_1_2")

	msg := chat.Message{ID: 10, ConversationID: "conv_1_2", SenderID: 1, ReceiverID: 2, Text: "hi"}
	h.planFanout(sender, msg).dispatch(h)

	senderGot := drainEvents(sender)
	if senderGot[EvtMessageSent] != 1 {
		t.Fatalf("expected exactly one ack, got %d", senderGot[EvtMessageSent])
	}
	if senderGot[EvtMessageReceived] != 0 || senderGot[EvtMessageNew] != 0 {
		t.Fatalf("sender must only get the ack, got %+v", senderGot)
	}

	observerGot := drainEvents(observer)
	if observerGot[EvtMessageNew] != 1 {
		t.Fatalf("expected one room broadcast for the observer, got %+v", observerGot)
	}
	if observerGot[EvtMessageReceived] != 0 {
		t.Fatal("no direct push may happen while the receiver is offline")
	}
}

func TestFanoutReceiverOnlineNoDuplicates(t *testing.T) {
	h := NewHub()

	sender := testClient(1, "alice")
	receiver := testClient(2, "bob")
	secondDevice := testClient(2, "bob") // room-joined but displaced in the directory
	h.Register(sender)
	h.Register(secondDevice)
	h.Register(receiver) // last writer: direct pushes go here
	for _, cl := range []*Client{sender, receiver, secondDevice} {
		h.Join(cl, "conv_1_2")
	}

	msg := chat.Message{ID: 11, ConversationID: "conv_1_2", SenderID: 1, ReceiverID: 2, Text: "hi"}
	h.planFanout(sender, msg).dispatch(h)

	receiverGot := drainEvents(receiver)
	if receiverGot[EvtMessageReceived] != 1 {
		t.Fatalf("expected exactly one direct push, got %d", receiverGot[EvtMessageReceived])
	}

	secondGot := drainEvents(secondDevice)
	if secondGot[EvtMessageNew] != 1 {
		t.Fatalf("expected exactly one room frame on the second device, got %d", secondGot[EvtMessageNew])
	}
	if secondGot[EvtMessageReceived] != 0 {
		t.Fatal("direct push must hit only the directory's current connection")
	}

	if got := drainEvents(sender)[EvtMessageSent]; got != 1 {
		t.Fatalf("expected exactly one ack, got %d", got)
	}
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	c := newClient(auth.Identity{UserID: 1}, nil, 1)

	if !c.Send(Event{Type: "a"}) {
		t.Fatal("first send must fit the buffer")
	}
	if c.Send(Event{Type: "b"}) {
		t.Fatal("second send must be dropped, not block")
	}
}
