package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis fans envelopes out across API instances with Redis Pub/Sub.
type Redis struct {
	R      *redis.Client
	Prefix string
	Log    zerolog.Logger
}

func (r *Redis) channel(topic string) string {
	if r.Prefix == "" {
		return "rt:" + topic
	}
	return r.Prefix + topic
}

func (r *Redis) Publish(ctx context.Context, topic string, env Envelope) error {
	if r == nil || r.R == nil {
		return errors.New("pubsub: redis client not configured")
	}
	if err := validTopic(topic); err != nil {
		return err
	}
	env.Topic = topic
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pubsub: encode envelope: %w", err)
	}
	return r.R.Publish(ctx, r.channel(topic), data).Err()
}

// Subscribe confirms the subscription with Redis before returning, then
// delivers messages on a goroutine until Close or ctx is done.
func (r *Redis) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	if r == nil || r.R == nil {
		return nil, errors.New("pubsub: redis client not configured")
	}
	if err := validTopic(topic); err != nil {
		return nil, err
	}
	ps := r.R.Subscribe(ctx, r.channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", topic, err)
	}
	sub := &redisSub{ps: ps, done: make(chan struct{})}
	go sub.loop(ctx, h, r.Log)
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	once sync.Once
	done chan struct{}
}

func (s *redisSub) loop(ctx context.Context, h Handler, log zerolog.Logger) {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed envelope")
				continue
			}
			h(env)
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
