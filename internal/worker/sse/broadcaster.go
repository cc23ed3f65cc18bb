// Package sse streams continuity events (observations, handoffs, summaries)
// to dashboard clients as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// WriteTimeout bounds a single write to a client.
	WriteTimeout = 2 * time.Second

	// KeepAliveInterval is how often an idle stream receives a comment line.
	KeepAliveInterval = 30 * time.Second
)

// EventType names the kind of change an event reports.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventSessionStarted  EventType = "session_started"
	EventSessionEnded    EventType = "session_ended"
	EventObservation     EventType = "observation"
	EventPrompt          EventType = "prompt"
	EventSummary         EventType = "summary"
	EventHandoffCreated  EventType = "handoff_created"
	EventHandoffPickedUp EventType = "handoff_picked_up"
)

// Event is one message on the stream.
type Event struct {
	Type      EventType   `json:"type"`
	Project   string      `json:"project,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client is a connected stream. An empty Project receives every event.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	Project string
	once    sync.Once
	wmu     sync.Mutex
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

func (c *Client) wants(e Event) bool {
	return c.Project == "" || e.Project == "" || c.Project == e.Project
}

// Broadcaster fans events out to the connected clients.
type Broadcaster struct {
	clients map[string]*Client
	now     func() time.Time
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

// AddClient registers a stream for project ("" for all projects).
func (b *Broadcaster) AddClient(w http.ResponseWriter, project string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Project: project,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[client.ID] = client
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", client.ID).Str("project", project).Int("totalClients", total).Msg("SSE client connected")
	return client, nil
}

// RemoveClient unregisters a client and closes its Done channel.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	total := len(b.clients)
	b.mu.Unlock()

	client.close()
	log.Debug().Str("clientId", client.ID).Int("totalClients", total).Msg("SSE client disconnected")
}

// Publish stamps e and sends it to every client interested in its project.
// Slow or broken clients are dropped.
func (b *Broadcaster) Publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = b.now().Unix()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("Failed to marshal SSE event")
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)

	b.mu.RLock()
	targets := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.wants(e) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	b.send(targets, message)
}

func (b *Broadcaster) send(targets []*Client, message string) {
	if len(targets) == 0 {
		return
	}

	dead := make(chan *Client, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		select {
		case <-c.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !b.writeToClient(c, message) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		b.RemoveClient(c)
	}
}

// writeToClient reports false when the client failed or timed out.
func (b *Broadcaster) writeToClient(c *Client, message string) bool {
	result := make(chan error, 1)
	go func() {
		c.wmu.Lock()
		defer c.wmu.Unlock()
		_, err := c.Writer.Write([]byte(message))
		if err == nil {
			c.Flusher.Flush()
		}
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			log.Debug().Err(err).Str("clientId", c.ID).Msg("SSE write failed, dropping client")
			return false
		}
		return true
	case <-time.After(WriteTimeout):
		log.Warn().Str("clientId", c.ID).Dur("timeout", WriteTimeout).Msg("SSE write timed out, dropping client")
		return false
	case <-c.Done:
		return true
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE serves GET /api/events[?project=name] until the client goes away.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w, r.URL.Query().Get("project"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	b.send([]*Client{client}, fmt.Sprintf("event: %s\ndata: {\"type\":%q,\"clientId\":%q}\n\n",
		EventConnected, EventConnected, client.ID))

	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-ticker.C:
			b.send([]*Client{client}, ": keep-alive\n\n")
		}
	}
}
