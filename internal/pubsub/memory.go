package pubsub

import (
	"context"
	"sync"
)

// Memory is an in-process broker for tests and single-instance deployments.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

// NewMemory constructs an empty broker.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*memorySub]struct{})}
}

type memorySub struct {
	b     *Memory
	topic string
	h     Handler
	once  sync.Once
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		if set, ok := s.b.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.b.subs, s.topic)
			}
		}
	})
	return nil
}

func (m *Memory) Publish(_ context.Context, topic string, env Envelope) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	env.Topic = topic
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(m.subs[topic]))
	for sub := range m.subs[topic] {
		handlers = append(handlers, sub.h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic string, h Handler) (Subscription, error) {
	if err := validTopic(topic); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	sub := &memorySub{b: m, topic: topic, h: h}
	set, ok := m.subs[topic]
	if !ok {
		set = make(map[*memorySub]struct{})
		m.subs[topic] = set
	}
	set[sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

// Close drops every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string]map[*memorySub]struct{})
	return nil
}
