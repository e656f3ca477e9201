package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/repo"
)

// Sender roles.
const (
	RoleCustomer = "customer"
	RoleStore    = "store"
)

var (
	ErrNotFound      = errors.New("conversation not found")
	ErrInvalidCursor = errors.New("invalid message cursor")
	ErrRateLimited   = errors.New("sending too many messages")
)

// Querier is the chat persistence surface.
type Querier interface {
	GetOrCreateConversation(ctx context.Context, arg db.GetOrCreateConversationParams) (db.Conversation, error)
	GetConversation(ctx context.Context, id pgtype.UUID) (db.Conversation, error)
	ListConversationsByCustomer(ctx context.Context, arg db.ListConversationsByCustomerParams) ([]db.Conversation, error)
	ListConversationsByStore(ctx context.Context, arg db.ListConversationsByStoreParams) ([]db.Conversation, error)
	InsertChatMessage(ctx context.Context, arg db.InsertChatMessageParams) (db.ChatMessage, error)
	BumpConversation(ctx context.Context, arg db.BumpConversationParams) error
	ListChatMessages(ctx context.Context, arg db.ListChatMessagesParams) ([]db.ChatMessage, error)
	MarkConversationRead(ctx context.Context, arg db.MarkConversationReadParams) error
	GetStoreByKey(ctx context.Context, key string) (db.Store, error)
}

// RateChecker admits or refuses a send.
type RateChecker interface {
	Check(ctx context.Context, key string, rule ratelimit.Rule) error
}

// Service implements store/customer messaging.
type Service struct {
	Q         Querier
	Broker    pubsub.Broker
	Notifier  notify.Sender
	Limiter   RateChecker
	Rate      ratelimit.Rule
	MaxLength int
	Now       func() time.Time
	Log       zerolog.Logger
}

// Message is the API view of a chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the API view of a conversation.
type Conversation struct {
	ID            string     `json:"id"`
	StoreID       string     `json:"store_id"`
	CustomerID    string     `json:"customer_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Unread        int32      `json:"unread"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SendAsCustomer posts body from customerID to the current store, opening
// the conversation on first contact.
func (s *Service) SendAsCustomer(ctx context.Context, customerID, body string) (Message, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return Message{}, err
	}
	cid, err := repo.UUID(customerID)
	if err != nil {
		return Message{}, ErrNotFound
	}
	clean, err := s.admit(ctx, customerID, body)
	if err != nil {
		return Message{}, err
	}
	conv, err := s.Q.GetOrCreateConversation(ctx, db.GetOrCreateConversationParams{StoreID: storeID, CustomerID: cid})
	if err != nil {
		return Message{}, fmt.Errorf("open conversation: %w", err)
	}
	return s.send(ctx, conv, cid, RoleCustomer, clean)
}

// SendAsStore replies in conversationID on behalf of the store staff.
func (s *Service) SendAsStore(ctx context.Context, actor common.Principal, conversationID, body string) (Message, error) {
	conv, role, err := s.access(ctx, actor, conversationID)
	if err != nil {
		return Message{}, err
	}
	if role != RoleStore {
		return Message{}, ErrNotFound
	}
	sender, err := repo.UUID(actor.UserID)
	if err != nil {
		return Message{}, ErrNotFound
	}
	clean, err := s.admit(ctx, actor.UserID, body)
	if err != nil {
		return Message{}, err
	}
	return s.send(ctx, conv, sender, RoleStore, clean)
}

func (s *Service) admit(ctx context.Context, senderID, body string) (string, error) {
	clean, err := Sanitize(body, s.MaxLength)
	if err != nil {
		obs.Inc(obs.ChatMessages, "invalid")
		return "", err
	}
	if s.Limiter != nil {
		if err := s.Limiter.Check(ctx, "chat:"+senderID, s.Rate); err != nil {
			if errors.Is(err, ratelimit.ErrLimited) {
				obs.Inc(obs.ChatMessages, "limited")
				return "", ErrRateLimited
			}
			s.Log.Warn().Err(err).Msg("chat rate limiter unavailable")
		}
	}
	return clean, nil
}

func (s *Service) send(ctx context.Context, conv db.Conversation, sender pgtype.UUID, role, body string) (Message, error) {
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	row, err := s.Q.InsertChatMessage(ctx, db.InsertChatMessageParams{
		ID:             id.String(),
		ConversationID: conv.ID,
		SenderID:       sender,
		SenderRole:     role,
		Body:           body,
		CreatedAt:      repo.Timestamptz(now),
	})
	if err != nil {
		obs.Inc(obs.ChatMessages, "error")
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := s.Q.BumpConversation(ctx, db.BumpConversationParams{ID: conv.ID, At: repo.Timestamptz(now), SenderRole: role}); err != nil {
		s.Log.Warn().Err(err).Str("conversation_id", repo.String(conv.ID)).Msg("conversation bump failed")
	}
	msg := toMessage(row)
	obs.Inc(obs.ChatMessages, "ok")

	topic, recipient := pubsub.StoreTopic(repo.String(conv.StoreID)), ""
	if role == RoleStore {
		topic, recipient = pubsub.UserTopic(repo.String(conv.CustomerID)), repo.String(conv.CustomerID)
	} else if store, err := s.Q.GetStoreByKey(ctx, repo.String(conv.StoreID)); err == nil {
		recipient = repo.String(store.OwnerID)
	}
	if err := pubsub.Publish(ctx, s.Broker, topic, pubsub.TypeChatMessage, msg); err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Msg("chat publish failed")
	}
	if recipient != "" && s.Notifier != nil {
		_, err := s.Notifier.Send(ctx, recipient, notify.ChatMessageReceived{
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			SenderID:       msg.SenderID,
			Preview:        Preview(msg.Body, 80),
		})
		if err != nil {
			s.Log.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("chat notification failed")
		}
	}
	return msg, nil
}

// ListConversations returns the caller's conversations: the store's inbox
// for staff when asStore is set, the customer's own otherwise.
func (s *Service) ListConversations(ctx context.Context, actor common.Principal, asStore bool, limit int) ([]Conversation, error) {
	var (
		rows []db.Conversation
		err  error
	)
	if asStore {
		storeID, serr := repo.StoreUUID(ctx)
		if serr != nil {
			return nil, serr
		}
		if !actor.ManagesStore(repo.String(storeID)) {
			return nil, ErrNotFound
		}
		rows, err = s.Q.ListConversationsByStore(ctx, db.ListConversationsByStoreParams{StoreID: storeID, Limit: int32(limit)})
	} else {
		cid, perr := repo.UUID(actor.UserID)
		if perr != nil {
			return nil, ErrNotFound
		}
		rows, err = s.Q.ListConversationsByCustomer(ctx, db.ListConversationsByCustomerParams{CustomerID: cid, Limit: int32(limit)})
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		c := Conversation{
			ID:            repo.String(row.ID),
			StoreID:       repo.String(row.StoreID),
			CustomerID:    repo.String(row.CustomerID),
			LastMessageAt: repo.TimePtr(row.LastMessageAt),
			Unread:        row.CustomerUnread,
		}
		if asStore {
			c.Unread = row.StoreUnread
		}
		out = append(out, c)
	}
	return out, nil
}

// ListMessages pages backwards from before (a message id), newest first.
func (s *Service) ListMessages(ctx context.Context, actor common.Principal, conversationID, before string, limit int) ([]Message, error) {
	conv, _, err := s.access(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	var cursor pgtype.Text
	if before != "" {
		parsed, err := ulid.ParseStrict(before)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		cursor = repo.Text(parsed.String())
	}
	rows, err := s.Q.ListChatMessages(ctx, db.ListChatMessagesParams{ConversationID: conv.ID, Before: cursor, Limit: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, toMessage(row))
	}
	return out, nil
}

// MarkRead clears the caller's unread counter on the conversation.
func (s *Service) MarkRead(ctx context.Context, actor common.Principal, conversationID string) error {
	conv, role, err := s.access(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if err := s.Q.MarkConversationRead(ctx, db.MarkConversationReadParams{ID: conv.ID, Reader: role}); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

// access loads a conversation of the current store and reports which side
// the actor is on. Conversations the actor cannot see are reported missing.
func (s *Service) access(ctx context.Context, actor common.Principal, conversationID string) (db.Conversation, string, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return db.Conversation{}, "", err
	}
	id, err := repo.UUID(conversationID)
	if err != nil {
		return db.Conversation{}, "", ErrNotFound
	}
	conv, err := s.Q.GetConversation(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return db.Conversation{}, "", ErrNotFound
		}
		return db.Conversation{}, "", fmt.Errorf("get conversation: %w", err)
	}
	if conv.StoreID != storeID {
		return db.Conversation{}, "", ErrNotFound
	}
	switch {
	case repo.String(conv.CustomerID) == actor.UserID:
		return conv, RoleCustomer, nil
	case actor.ManagesStore(repo.String(conv.StoreID)):
		return conv, RoleStore, nil
	}
	return db.Conversation{}, "", ErrNotFound
}

func toMessage(row db.ChatMessage) Message {
	m := Message{
		ID:             row.ID,
		ConversationID: repo.String(row.ConversationID),
		SenderID:       repo.String(row.SenderID),
		SenderRole:     row.SenderRole,
		Body:           row.Body,
	}
	if row.CreatedAt.Valid {
		m.CreatedAt = row.CreatedAt.Time
	}
	return m
}
