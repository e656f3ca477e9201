package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const conversationColumns = `id, store_id, customer_id, last_message_at, customer_unread, store_unread, created_at`

const getOrCreateConversation = `-- name: GetOrCreateConversation :one
INSERT INTO conversations (store_id, customer_id)
VALUES ($1, $2)
ON CONFLICT (store_id, customer_id) DO UPDATE SET store_id = EXCLUDED.store_id
RETURNING ` + conversationColumns

type GetOrCreateConversationParams struct {
	StoreID    pgtype.UUID `json:"store_id"`
	CustomerID pgtype.UUID `json:"customer_id"`
}

func (q *Queries) GetOrCreateConversation(ctx context.Context, arg GetOrCreateConversationParams) (Conversation, error) {
	row := q.db.QueryRow(ctx, getOrCreateConversation, arg.StoreID, arg.CustomerID)
	var i Conversation
	err := scanConversation(row, &i)
	return i, err
}

const getConversation = `-- name: GetConversation :one
SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1
`

func (q *Queries) GetConversation(ctx context.Context, id pgtype.UUID) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversation, id)
	var i Conversation
	err := scanConversation(row, &i)
	return i, err
}

const listConversationsByCustomer = `-- name: ListConversationsByCustomer :many
SELECT ` + conversationColumns + `
FROM conversations
WHERE customer_id = $1
ORDER BY last_message_at DESC NULLS LAST
LIMIT $2
`

type ListConversationsByCustomerParams struct {
	CustomerID pgtype.UUID `json:"customer_id"`
	Limit      int32       `json:"limit"`
}

func (q *Queries) ListConversationsByCustomer(ctx context.Context, arg ListConversationsByCustomerParams) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsByCustomer, arg.CustomerID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

const listConversationsByStore = `-- name: ListConversationsByStore :many
SELECT ` + conversationColumns + `
FROM conversations
WHERE store_id = $1
ORDER BY last_message_at DESC NULLS LAST
LIMIT $2
`

type ListConversationsByStoreParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Limit   int32       `json:"limit"`
}

func (q *Queries) ListConversationsByStore(ctx context.Context, arg ListConversationsByStoreParams) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsByStore, arg.StoreID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

const insertChatMessage = `-- name: InsertChatMessage :one
INSERT INTO chat_messages (id, conversation_id, sender_id, sender_role, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, conversation_id, sender_id, sender_role, body, created_at
`

type InsertChatMessageParams struct {
	ID             string             `json:"id"`
	ConversationID pgtype.UUID        `json:"conversation_id"`
	SenderID       pgtype.UUID        `json:"sender_id"`
	SenderRole     string             `json:"sender_role"`
	Body           string             `json:"body"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) InsertChatMessage(ctx context.Context, arg InsertChatMessageParams) (ChatMessage, error) {
	row := q.db.QueryRow(ctx, insertChatMessage,
		arg.ID,
		arg.ConversationID,
		arg.SenderID,
		arg.SenderRole,
		arg.Body,
		arg.CreatedAt,
	)
	var i ChatMessage
	err := row.Scan(
		&i.ID,
		&i.ConversationID,
		&i.SenderID,
		&i.SenderRole,
		&i.Body,
		&i.CreatedAt,
	)
	return i, err
}

const bumpConversation = `-- name: BumpConversation :exec
UPDATE conversations
SET last_message_at = $2,
    customer_unread = customer_unread + CASE WHEN $3::text = 'store' THEN 1 ELSE 0 END,
    store_unread = store_unread + CASE WHEN $3::text = 'customer' THEN 1 ELSE 0 END
WHERE id = $1
`

type BumpConversationParams struct {
	ID         pgtype.UUID        `json:"id"`
	At         pgtype.Timestamptz `json:"at"`
	SenderRole string             `json:"sender_role"`
}

func (q *Queries) BumpConversation(ctx context.Context, arg BumpConversationParams) error {
	_, err := q.db.Exec(ctx, bumpConversation, arg.ID, arg.At, arg.SenderRole)
	return err
}

const listChatMessages = `-- name: ListChatMessages :many
SELECT id, conversation_id, sender_id, sender_role, body, created_at
FROM chat_messages
WHERE conversation_id = $1 AND ($2::text IS NULL OR id < $2::text)
ORDER BY id DESC
LIMIT $3
`

type ListChatMessagesParams struct {
	ConversationID pgtype.UUID `json:"conversation_id"`
	Before         pgtype.Text `json:"before"`
	Limit          int32       `json:"limit"`
}

func (q *Queries) ListChatMessages(ctx context.Context, arg ListChatMessagesParams) ([]ChatMessage, error) {
	rows, err := q.db.Query(ctx, listChatMessages, arg.ConversationID, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChatMessage
	for rows.Next() {
		var i ChatMessage
		if err := rows.Scan(
			&i.ID,
			&i.ConversationID,
			&i.SenderID,
			&i.SenderRole,
			&i.Body,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markConversationRead = `-- name: MarkConversationRead :exec
UPDATE conversations
SET customer_unread = CASE WHEN $2::text = 'customer' THEN 0 ELSE customer_unread END,
    store_unread = CASE WHEN $2::text = 'store' THEN 0 ELSE store_unread END
WHERE id = $1
`

type MarkConversationReadParams struct {
	ID     pgtype.UUID `json:"id"`
	Reader string      `json:"reader"`
}

func (q *Queries) MarkConversationRead(ctx context.Context, arg MarkConversationReadParams) error {
	_, err := q.db.Exec(ctx, markConversationRead, arg.ID, arg.Reader)
	return err
}

func scanConversation(row rowScanner, i *Conversation) error {
	return row.Scan(
		&i.ID,
		&i.StoreID,
		&i.CustomerID,
		&i.LastMessageAt,
		&i.CustomerUnread,
		&i.StoreUnread,
		&i.CreatedAt,
	)
}

type conversationRows interface {
	rowScanner
	Next() bool
	Err() error
	Close()
}

func collectConversations(rows conversationRows) ([]Conversation, error) {
	defer rows.Close()
	var items []Conversation
	for rows.Next() {
		var i Conversation
		if err := scanConversation(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
