package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// PostgresReader reads conversation history from PostgreSQL.
type PostgresReader struct {
	pool *pgxpool.Pool
}

// NewPostgresReader connects to the database and creates the messages
// table if it doesn't exist.
func NewPostgresReader(ctx context.Context, connURL string) (*PostgresReader, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("history connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}

	r := &PostgresReader{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}

	log.Info().Msg("Postgres history reader initialized")
	return r, nil
}

func (r *PostgresReader) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id              BIGSERIAL PRIMARY KEY,
			user_id         TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_conv_messages_lookup
			ON conversation_messages (user_id, conversation_id, created_at DESC);
	`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *PostgresReader) Recent(ctx context.Context, userID, conversationID string, limit int) ([]models.StoredMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	// Fetch newest-first with the limit, then reverse so callers get
	// oldest-first.
	query := `SELECT conversation_id, role, content, created_at
		FROM conversation_messages
		WHERE user_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, userID, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	var msgs []models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *PostgresReader) Append(ctx context.Context, userID string, msg models.StoredMessage) error {
	query := `INSERT INTO conversation_messages (user_id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, userID, msg.ConversationID, msg.Role, msg.Content); err != nil {
		return fmt.Errorf("history insert: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresReader) Close() {
	r.pool.Close()
}
