// Package ws fans live updates out to connected clients. Clients hold one
// connection, subscribe to the groups they are currently viewing, and always
// receive events addressed to their uid (chat-list updates, new matches).
package ws

import (
	"context"
	"encoding/json"

	"github.com/flatfinder/flatfinder/internal/logger"
)

// Event types pushed to clients.
const (
	EventMatch        = "match"
	EventGroupUpdated = "group_updated"
	EventGroupDeleted = "group_deleted"
	EventNewMessage   = "new_message"
	EventMessageRead  = "message_read"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type envelope struct {
	uids    []string // targeted uids; empty when group-addressed
	groupID string
	data    []byte
}

type subRequest struct {
	client    *Client
	groupID   string
	subscribe bool
}

// Hub owns all connection state. Every map mutation happens on the Run
// goroutine; callers talk to it through channels only.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	deliver    chan envelope
	subs       chan subRequest

	byUID   map[string]map[*Client]struct{}
	byGroup map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan envelope, 256),
		subs:       make(chan subRequest),
		byUID:      make(map[string]map[*Client]struct{}),
		byGroup:    make(map[string]map[*Client]struct{}),
	}
}

// Run processes hub traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			if h.byUID[c.uid] == nil {
				h.byUID[c.uid] = make(map[*Client]struct{})
			}
			h.byUID[c.uid][c] = struct{}{}
			logger.Debug("ws client registered", "uid", c.uid)

		case c := <-h.unregister:
			if clients, ok := h.byUID[c.uid]; ok {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					if len(clients) == 0 {
						delete(h.byUID, c.uid)
					}
					close(c.send)
				}
			}
			// drop every group subscription the connection held
			for gid, clients := range h.byGroup {
				delete(clients, c)
				if len(clients) == 0 {
					delete(h.byGroup, gid)
				}
			}
			logger.Debug("ws client unregistered", "uid", c.uid)

		case r := <-h.subs:
			if r.subscribe {
				if h.byGroup[r.groupID] == nil {
					h.byGroup[r.groupID] = make(map[*Client]struct{})
				}
				h.byGroup[r.groupID][r.client] = struct{}{}
			} else if clients, ok := h.byGroup[r.groupID]; ok {
				delete(clients, r.client)
				if len(clients) == 0 {
					delete(h.byGroup, r.groupID)
				}
			}

		case env := <-h.deliver:
			if env.groupID != "" {
				for c := range h.byGroup[env.groupID] {
					c.trySend(env.data)
				}
				continue
			}
			for _, uid := range env.uids {
				for c := range h.byUID[uid] {
					c.trySend(env.data)
				}
			}
		}
	}
}

// SendToUsers delivers ev to every open connection of the given uids.
// Best effort: delivery is dropped rather than ever blocking the caller.
func (h *Hub) SendToUsers(uids []string, ev Event) {
	h.post(envelope{uids: uids, data: marshal(ev)})
}

// SendToGroup delivers ev to every connection subscribed to groupID.
func (h *Hub) SendToGroup(groupID string, ev Event) {
	h.post(envelope{groupID: groupID, data: marshal(ev)})
}

func (h *Hub) post(env envelope) {
	if env.data == nil {
		return
	}
	select {
	case h.deliver <- env:
	default:
		logger.Warn("ws delivery queue full, dropping event")
	}
}

func marshal(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal ws event", "type", ev.Type, "err", err)
		return nil
	}
	return data
}
