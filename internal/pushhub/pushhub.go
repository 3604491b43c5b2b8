// Package pushhub fans state-change events out to WebSocket subscribers at
// /ws, per spec.md §4.7/§6 "Push channel". Grounded on the hub/client split
// and bounded-per-subscriber-buffer pattern of
// other_examples/1f3cbe66_tomtom215-cartographus's websocket hub, adapted
// from a single global broadcast buffer to spec.md §5's per-subscriber
// bounded buffer with a drop-oldest-and-mark-lagging overflow policy.
package pushhub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// subscriberBuffer is the bounded per-subscriber outbound queue size
// spec.md §5 fixes at 64.
const subscriberBuffer = 64

// Envelope is the {type, payload} shape every server->client message takes.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope type constants, per spec.md §6 "Push channel /ws".
const (
	EventDeviceDiscovered     = "device_discovered"
	EventDeviceStatus         = "device_status"
	EventLightEffectTriggered = "light_effect_triggered"
	EventSoundPlayed          = "sound_played"
	EventSceneApplied         = "scene_applied"
)

// Inbound is a client->server control message. Unrecognized Type values are
// ignored by the hub, per spec.md §6.
type Inbound struct {
	Type       string `json:"type"`
	ButtonID   string `json:"buttonId,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	EffectType string `json:"effectType,omitempty"`
	Duration   int    `json:"duration,omitempty"`
}

// InboundHandler processes one parsed client->server message.
type InboundHandler func(Inbound)

// Subscriber is one connected WebSocket client.
type Subscriber struct {
	id      uint64
	conn    *websocket.Conn
	send    chan Envelope
	lagging bool

	mu sync.Mutex
}

// Hub tracks connected subscribers and broadcasts envelopes to all of them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]*Subscriber
	nextID      uint64

	onInbound InboundHandler
}

// New constructs an empty Hub. onInbound, if non-nil, is invoked for every
// well-formed client->server message received on any connection.
func New(onInbound InboundHandler) *Hub {
	return &Hub{
		subscribers: make(map[uint64]*Subscriber),
		onInbound:   onInbound,
	}
}

// Serve adopts conn as a new subscriber and blocks, pumping inbound
// messages, until the connection closes or fails. Call it from the /ws
// HTTP handler's goroutine, after upgrading.
func (h *Hub) Serve(conn *websocket.Conn) {
	sub := &Subscriber{
		conn: conn,
		send: make(chan Envelope, subscriberBuffer),
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	log.WithField("component", "pushhub").WithField("subscribers", count).Debug("client connected")

	writerDone := make(chan struct{})
	go h.writePump(sub, writerDone)

	h.readPump(sub)

	h.mu.Lock()
	delete(h.subscribers, sub.id)
	count = len(h.subscribers)
	h.mu.Unlock()

	close(sub.send)
	<-writerDone
	conn.Close()
	log.WithField("component", "pushhub").WithField("subscribers", count).Debug("client disconnected")
}

func (h *Hub) readPump(sub *Subscriber) {
	for {
		var in Inbound
		if err := sub.conn.ReadJSON(&in); err != nil {
			return
		}
		if h.onInbound != nil {
			h.onInbound(in)
		}
	}
}

func (h *Hub) writePump(sub *Subscriber, done chan struct{}) {
	defer close(done)
	for env := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := sub.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

// Broadcast delivers env to every connected subscriber. Slow subscribers
// never block the broadcaster: when a subscriber's buffer is full, the
// oldest queued envelope is dropped to make room and the subscriber is
// marked lagging, per spec.md §5's event-bus fan-out policy.
func (h *Hub) Broadcast(typ string, payload interface{}) {
	env := Envelope{Type: typ, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.send <- env:
		default:
			h.dropOldestAndEnqueue(sub, env)
		}
	}
}

func (h *Hub) dropOldestAndEnqueue(sub *Subscriber, env Envelope) {
	select {
	case <-sub.send:
	default:
	}
	sub.mu.Lock()
	sub.lagging = true
	sub.mu.Unlock()

	select {
	case sub.send <- env:
	default:
		// buffer refilled by a concurrent broadcast between the drop and
		// this enqueue; drop env rather than block.
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
