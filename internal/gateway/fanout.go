package gateway

import "zenchat/internal/chat"

// fanoutPlan captures, immediately after a message is persisted, the three
// independent delivery channels: sender ack, direct receiver push, and room
// broadcast.
type fanoutPlan struct {
	msg      chat.Message
	sender   *Client
	receiver *Client // nil when the receiver has no live connection
	room     string
}

// planFanout resolves the receiver against the directory at plan time. The
// lookup is a snapshot: a receiver connecting a moment later simply misses
// the push and finds the message on its next fetch.
func (h *Hub) planFanout(sender *Client, msg chat.Message) fanoutPlan {
	return fanoutPlan{
		msg:      msg,
		sender:   sender,
		receiver: h.Lookup(msg.ReceiverID),
		room:     msg.ConversationID,
	}
}

// dispatch delivers the plan. Every channel is best-effort; nothing here is
// transactional with the persist that preceded it.
func (p fanoutPlan) dispatch(h *Hub) {
	p.sender.Send(Event{Type: EvtMessageSent, Data: p.msg})

	if p.receiver != nil {
		p.receiver.Send(Event{Type: EvtMessageReceived, Data: p.msg})
	}

	h.BroadcastRoom(p.room, p.sender, Event{Type: EvtMessageNew, Data: p.msg})
}
