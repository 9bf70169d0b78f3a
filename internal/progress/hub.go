package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/amber-sync/amber-sub000/internal/snapshot"
)

// Hub is the central pub/sub broker for websocket clients. It maintains the
// registry of connected clients and routes published messages to all
// clients subscribed to a given job topic.
//
// # Design: single-writer event loop
//
// All mutations to the client registry (register, unregister) are
// serialised through a single goroutine — the Run loop — via channels, and
// Run holds the write lock on mu while it changes the maps. Publish holds
// only a read-lock, for the shortest possible time, to copy the target set,
// then sends outside the lock so a slow client never blocks the event loop.
type Hub struct {
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

// NewHub creates an idle Hub. Call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		stopped:    make(chan struct{}),
	}
}

// JobTopic returns the pub/sub topic for a job id.
func JobTopic(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// Run starts the hub's event loop. It must be called exactly once, in its
// own goroutine, and exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			for _, topic := range client.topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[*Client]struct{})
				}
				h.topics[topic][client] = struct{}{}
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for _, topic := range client.topics {
					delete(h.topics[topic], client)
					if len(h.topics[topic]) == 0 {
						delete(h.topics, topic)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]struct{})
			h.topics = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Publish sends msg to every client subscribed to topic. Safe to call from
// any goroutine. Clients whose send buffer is full are disconnected so a
// slow consumer cannot stall other subscribers on the same topic.
func (h *Hub) Publish(topic string, msg Message) {
	h.mu.RLock()
	targets := h.topics[topic]
	var clients []*Client
	for c := range targets {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			h.unregister <- c
		}
	}
}

// ReportStatus implements snapshot.Reporter, publishing a job.status
// message on the job's topic.
func (h *Hub) ReportStatus(jobID string, status snapshot.Status, message string) {
	h.Publish(JobTopic(jobID), Message{
		Type:  MsgJobStatus,
		Topic: JobTopic(jobID),
		Payload: JobStatusPayload{
			Status:  string(status),
			Message: message,
		},
	})
}

// SendLog implements snapshot.Reporter, publishing a job.log message on
// the job's topic.
func (h *Hub) SendLog(jobID, level, line string) {
	h.Publish(JobTopic(jobID), Message{
		Type:  MsgJobLog,
		Topic: JobTopic(jobID),
		Payload: JobLogPayload{
			Level: level,
			Line:  line,
		},
	})
}

// Subscribe registers client with the hub and adds it to all its topics.
func (h *Hub) Subscribe(client *Client) {
	h.register <- client
}

// Unsubscribe removes client from the hub and all its topic subscriptions.
func (h *Hub) Unsubscribe(client *Client) {
	h.unregister <- client
}

// ConnectedCount returns the current number of connected websocket clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
