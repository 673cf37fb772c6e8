package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/notify"
	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	permission notify.PermissionState
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

func (c *client) setPermission(p notify.PermissionState) {
	c.mu.Lock()
	c.permission = p
	c.mu.Unlock()
}

func (c *client) permissionState() notify.PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Broadcaster fans messages out to connected dashboard clients and adapts
// them into the collaborators the poll core consumes: it is the
// notify.Notifier (clients raise platform notifications and report
// permission state), the notify.TitleBoard (the server holds the
// authoritative page title and pushes changes), and the
// poll.VisibilitySource (clients report visibility-regain, sessions
// subscribe for wake-ups).
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	titleMu sync.Mutex
	title   string

	visMu sync.Mutex
	subs  map[chan struct{}]bool
}

func NewBroadcaster(initialTitle string) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
		title:   initialTitle,
		subs:    make(map[chan struct{}]bool),
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	// New clients get the current title so a reconnect during a flash
	// shows the flash.
	data, err := json.Marshal(WSMessage{Type: MsgTitle, Payload: TitlePayload{Title: b.Title()}})
	if err == nil {
		select {
		case c.send <- data:
		default:
		}
	}
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends msg to every connected client. Clients that cannot keep
// up are disconnected.
func (b *Broadcaster) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			log.Printf("[ws] client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// --- notify.Notifier ---

// PermissionState aggregates client-reported permission: granted if any
// connected client reported granted, denied if every connected client
// reported denied, undecided otherwise (including when no client is
// connected).
func (b *Broadcaster) PermissionState() notify.PermissionState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.clients) == 0 {
		return notify.PermissionUndecided
	}
	allDenied := true
	for c := range b.clients {
		switch c.permissionState() {
		case notify.PermissionGranted:
			return notify.PermissionGranted
		case notify.PermissionDenied:
		default:
			allDenied = false
		}
	}
	if allDenied {
		return notify.PermissionDenied
	}
	return notify.PermissionUndecided
}

// RequestPermission asks connected clients to run the ask-once permission
// prompt. Grants arrive asynchronously via permission messages, so the
// state returned here reflects only what is already known.
func (b *Broadcaster) RequestPermission() notify.PermissionState {
	b.Broadcast(WSMessage{Type: MsgPermissionRequest})
	return b.PermissionState()
}

func (b *Broadcaster) Notify(n notify.Notification) error {
	if b.ClientCount() == 0 {
		return errors.New("no connected clients")
	}
	b.Broadcast(WSMessage{Type: MsgNotification, Payload: NotificationPayload{Notification: n}})
	return nil
}

// --- notify.TitleBoard ---

func (b *Broadcaster) Title() string {
	b.titleMu.Lock()
	defer b.titleMu.Unlock()
	return b.title
}

func (b *Broadcaster) SetTitle(title string) {
	b.titleMu.Lock()
	b.title = title
	b.titleMu.Unlock()
	b.Broadcast(WSMessage{Type: MsgTitle, Payload: TitlePayload{Title: title}})
}

// --- poll.VisibilitySource ---

func (b *Broadcaster) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.visMu.Lock()
	b.subs[ch] = true
	b.visMu.Unlock()
	return ch, func() {
		b.visMu.Lock()
		delete(b.subs, ch)
		b.visMu.Unlock()
	}
}

// VisibilityRegained wakes every subscribed poll session. Called when a
// client reports its page transitioned from hidden to visible. Events are
// coalesced per subscriber.
func (b *Broadcaster) VisibilityRegained() {
	b.visMu.Lock()
	defer b.visMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// HandleClientMessage applies an inbound client message.
func (b *Broadcaster) HandleClientMessage(c *client, msg ClientMessage) {
	switch msg.Type {
	case "visibility":
		if msg.Visible {
			b.VisibilityRegained()
		}
	case "permission":
		switch msg.State {
		case "granted":
			c.setPermission(notify.PermissionGranted)
		case "denied":
			c.setPermission(notify.PermissionDenied)
		default:
			c.setPermission(notify.PermissionUndecided)
		}
	default:
		log.Printf("[ws] unknown client message type %q", msg.Type)
	}
}
