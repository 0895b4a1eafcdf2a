// Package pubsub is the in-process fan-out used to push leaderboard snapshots
// and contest lifecycle events to realtime subscribers. It only defines the
// data contract; the websocket layer is just one consumer.
package pubsub

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// LeaderboardTopic names the per-contest channel carrying ordered standings.
func LeaderboardTopic(contestID string) string {
	return fmt.Sprintf("contest:%s:leaderboard", contestID)
}

// ContestEventsTopic carries ContestCreated/Updated/Deleted events.
const ContestEventsTopic = "contests"

// Broker is a simple in-memory pub/sub hub. It is created by the composition
// root and passed to its users explicitly; there is no process-wide singleton.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	latest      map[string][]byte // topic -> last published message
}

func New() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan []byte),
		latest:      make(map[string][]byte),
	}
}

// Subscribe subscribes to a topic. A new subscriber immediately receives the
// last message published on the topic, if any, so a client connecting mid-
// contest sees the current leaderboard without waiting for the next change.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	b.mu.Lock()

	ch := make(chan []byte, 128)
	if last, ok := b.latest[topic]; ok {
		ch <- last
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subscribers[topic]
		for i, sub := range subscribers {
			if sub == ch {
				b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
				close(ch)
				break
			}
		}
		zap.S().Debugf("unsubscribed from topic %s", topic)
	}

	zap.S().Debugf("new subscription to topic %s", topic)
	return ch, unsubscribe
}

// Publish sends a message to all subscribers of a topic and remembers it for
// future subscribers.
func (b *Broker) Publish(topic string, msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[topic] = msg

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			// A slow client must not block the publisher; drop for them.
		}
	}
}

// CloseTopic closes all subscriber channels and forgets the cached message.
// Called when a contest ends or is deleted.
func (b *Broker) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[topic]; ok {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
	delete(b.latest, topic)
	zap.S().Infof("closed pubsub topic %s", topic)
}
