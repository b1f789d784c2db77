package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// sendBuffer is how many payloads may wait for one subscriber before it is
// considered stalled and dropped.
const sendBuffer = 16

// Hub fans out payloads to the subscribers of a topic. Topics are session ids.
// Each subscriber is written to by its own goroutine.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]*outlet
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	drop      chan string
	done      chan struct{}
	closeOnce sync.Once
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
	ack    chan (<-chan struct{})
}

// outlet queues payloads for a single subscriber.
type outlet struct {
	sub      Subscriber
	queue    chan []byte
	stop     chan struct{}
	finished chan struct{}
	haltOnce sync.Once
}

func newOutlet(sub Subscriber) *outlet {
	return &outlet{
		sub:      sub,
		queue:    make(chan []byte, sendBuffer),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (o *outlet) halt() {
	o.haltOnce.Do(func() { close(o.stop) })
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]*outlet),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		drop:      make(chan string),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]*outlet)
			}
			if _, ok := h.clients[sub.topic][sub.client]; !ok {
				o := newOutlet(sub.client)
				h.clients[sub.topic][sub.client] = o
				go h.pump(sub.topic, o)
			}
			h.mu.Unlock()
		case sub := <-h.unreg:
			h.mu.Lock()
			finished := h.removeLocked(sub.topic, sub.client)
			h.mu.Unlock()
			sub.ack <- finished
		case topic := <-h.drop:
			h.mu.Lock()
			for c, o := range h.clients[topic] {
				o.halt()
				c.Close()
			}
			delete(h.clients, topic)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c, o := range h.clients[msg.topic] {
				select {
				case o.queue <- msg.payload:
				default:
					c.Close()
					h.removeLocked(msg.topic, c)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for topic, clients := range h.clients {
				for c, o := range clients {
					o.halt()
					c.Close()
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return
		}
	}
}

// pump delivers queued payloads to one subscriber until it is halted or a
// send fails.
func (h *Hub) pump(topic string, o *outlet) {
	defer close(o.finished)
	for {
		select {
		case <-o.stop:
			return
		case payload := <-o.queue:
			select {
			case <-o.stop:
				return
			default:
			}
			if err := o.sub.Send(payload); err != nil {
				o.sub.Close()
				h.mu.Lock()
				if h.clients[topic][o.sub] == o {
					h.removeLocked(topic, o.sub)
				}
				h.mu.Unlock()
				return
			}
		}
	}
}

// removeLocked halts and forgets client. It returns a channel closed once the
// client's pump has exited, or nil if the client was not registered.
func (h *Hub) removeLocked(topic string, client Subscriber) <-chan struct{} {
	clients, ok := h.clients[topic]
	if !ok {
		return nil
	}
	o, ok := clients[client]
	if !ok {
		return nil
	}
	o.halt()
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
	return o.finished
}

// Register adds a client to a topic stream.
func (h *Hub) Register(topic string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topic, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client. Once it returns the hub makes no further Send
// calls on client.
func (h *Hub) Unregister(topic string, client Subscriber) {
	ack := make(chan (<-chan struct{}), 1)
	select {
	case h.unreg <- subscription{topic: topic, client: client, ack: ack}:
	case <-h.done:
		return
	}
	if finished := <-ack; finished != nil {
		<-finished
	}
}

// Broadcast sends payload to all topic clients. It is a no-op after Close.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Drop closes and removes every subscriber of topic.
func (h *Hub) Drop(topic string) {
	select {
	case h.drop <- topic:
	case <-h.done:
	}
}

// Subscribers reports how many clients listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Done is closed once the hub shuts down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Close stops the hub and closes every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
