package broker

import "sync"

type publication[TID comparable, TPayload any] struct {
	ID      TID
	Payload TPayload
}

type subscription[TID comparable, TPayload any] struct {
	ID      TID
	Channel chan TPayload
}

// Hub fans out payloads published under an ID to every current subscriber of that ID.
//
// The hub is used to stream the countdown of a live simulation through SSE. The producer is the session observer
// that publishes every tick. The consumers are the SSE handlers of the learner's open browser tabs. Delivery never
// blocks the producer: a subscriber that has not drained its buffer misses the payload, which is fine because every
// payload carries the full state.
type Hub[TID comparable, TPayload any] struct {
	bufferSize         int
	stopChannel        chan struct{}
	stopOnce           sync.Once
	publishChannel     chan publication[TID, TPayload]
	subscribeChannel   chan subscription[TID, TPayload]
	unsubscribeChannel chan subscription[TID, TPayload]
	closeChannel       chan TID
}

// NewHub creates a new Hub whose subscriptions buffer up to bufferSize payloads.
// Use Start() in a goroutine to run it and Stop() to stop it.
func NewHub[TID comparable, TPayload any](bufferSize int) *Hub[TID, TPayload] {
	return &Hub[TID, TPayload]{
		bufferSize:         bufferSize,
		stopChannel:        make(chan struct{}),
		stopOnce:           sync.Once{},
		publishChannel:     make(chan publication[TID, TPayload]),
		subscribeChannel:   make(chan subscription[TID, TPayload]),
		unsubscribeChannel: make(chan subscription[TID, TPayload]),
		closeChannel:       make(chan TID),
	}
}

// Start handling publish, subscribe and close events. This function blocks until Stop() is called,
// so it should be called in a goroutine.
func (h *Hub[TID, TPayload]) Start() {
	subscribers := map[TID]map[chan TPayload]struct{}{}
	closeAll := func(id TID) {
		for c := range subscribers[id] {
			close(c)
		}
		delete(subscribers, id)
	}
	for {
		select {
		case <-h.stopChannel:
			for id := range subscribers {
				closeAll(id)
			}
			return

		case s := <-h.subscribeChannel:
			if subscribers[s.ID] == nil {
				subscribers[s.ID] = map[chan TPayload]struct{}{}
			}
			subscribers[s.ID][s.Channel] = struct{}{}

		case s := <-h.unsubscribeChannel:
			// The channel is already closed when the ID was closed in the meantime.
			if _, ok := subscribers[s.ID][s.Channel]; ok {
				delete(subscribers[s.ID], s.Channel)
				close(s.Channel)
				if len(subscribers[s.ID]) == 0 {
					delete(subscribers, s.ID)
				}
			}

		case p := <-h.publishChannel:
			for c := range subscribers[p.ID] {
				select {
				case c <- p.Payload:
				default:
				}
			}

		case id := <-h.closeChannel:
			closeAll(id)
		}
	}
}

// Stop the goroutine that handles the hub. Every open subscription is closed. Stopping twice is a no-op.
func (h *Hub[TID, TPayload]) Stop() {
	h.stopOnce.Do(func() { close(h.stopChannel) })
}

// Subscribe to the payloads published under id. The returned channel is closed when unsubscribe is called, the ID
// is closed or the hub stops.
func (h *Hub[TID, TPayload]) Subscribe(id TID) (<-chan TPayload, func()) {
	channel := make(chan TPayload, h.bufferSize)
	s := subscription[TID, TPayload]{ID: id, Channel: channel}
	select {
	case h.subscribeChannel <- s:
	case <-h.stopChannel:
		close(channel)
		return channel, func() {}
	}
	unsubscribe := func() {
		select {
		case h.unsubscribeChannel <- s:
		case <-h.stopChannel:
		}
	}
	return channel, unsubscribe
}

// Publish payload to the current subscribers of id.
func (h *Hub[TID, TPayload]) Publish(id TID, payload TPayload) {
	select {
	case h.publishChannel <- publication[TID, TPayload]{ID: id, Payload: payload}:
	case <-h.stopChannel:
	}
}

// Close ends every subscription of id.
func (h *Hub[TID, TPayload]) Close(id TID) {
	select {
	case h.closeChannel <- id:
	case <-h.stopChannel:
	}
}
