package history

import (
	"context"
	"fmt"

	"github.com/vantari/taskweave/internal/task"
)

// FindOrCreateThread returns the id of the thread row for a platform
// conversation, creating it on first sight.
func (s *Store) FindOrCreateThread(ctx context.Context, platform, channelID, threadKey string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO threads (id, platform, channel_id, thread_key)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (platform, channel_id, thread_key)
		DO UPDATE SET last_active_at = now()
		RETURNING id`,
		platform, channelID, threadKey,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find or create thread: %w", err)
	}
	return id, nil
}

// AppendMessage stores a message in the given thread.
func (s *Store) AppendMessage(ctx context.Context, threadID string, msg task.ContextMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, thread_id, role, author, content)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		threadID, msg.Role, msg.Author, msg.Text,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages retrieves the latest messages for a thread in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, threadID string, limit int) ([]task.ContextMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, author, content FROM (
			SELECT role, author, content, seq
			FROM messages
			WHERE thread_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []task.ContextMessage
	for rows.Next() {
		var msg task.ContextMessage
		if err := rows.Scan(&msg.Role, &msg.Author, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
