package chats

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, chat Chat) error {
	const query = `
INSERT INTO chats (id, creator_id, message, reply, mood, recommendation, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		chat.ID,
		chat.CreatorID,
		chat.Message,
		chat.Reply,
		nullableString(chat.Mood),
		nullableString(chat.Recommendation),
		nullableString(chat.Reason),
		chat.CreatedAt,
	)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Chat, error) {
	const query = `
SELECT id, creator_id, message, reply, mood, recommendation, reason, created_at
FROM chats
WHERE id = $1
LIMIT 1`
	chat, err := scanChat(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	return chat, err
}

func (r *PGRepo) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]Chat, error) {
	const query = `
SELECT id, creator_id, message, reply, mood, recommendation, reason, created_at
FROM chats
WHERE creator_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, query, creatorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chat)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (Chat, error) {
	var chat Chat
	var mood, recommendation, reason sql.NullString
	if err := row.Scan(
		&chat.ID,
		&chat.CreatorID,
		&chat.Message,
		&chat.Reply,
		&mood,
		&recommendation,
		&reason,
		&chat.CreatedAt,
	); err != nil {
		return Chat{}, err
	}
	chat.Mood = mood.String
	chat.Recommendation = recommendation.String
	chat.Reason = reason.String
	return chat, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
