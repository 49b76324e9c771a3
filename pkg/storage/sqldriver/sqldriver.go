// Package sqldriver implements storage.Driver over database/sql. The sqlite
// and postgres drivers share it and differ only in Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder func(n int) string

	// Schema is executed once at open time.
	Schema []string
}

// Question is the "?" placeholder style.
func Question(int) string { return "?" }

// Dollar is the "$n" placeholder style.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Driver is the shared database/sql message store.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open wraps db and applies the dialect's schema.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
		}
	}

	return &Driver{DB: db, Dialect: dialect}, nil
}

const columns = "id, session_id, conversation_id, role, content, created_at, importance_score"

// Put upserts messages in a single transaction.
func (d *Driver) Put(ctx context.Context, msgs ...*storage.Message) error {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p := d.Dialect.Placeholder
	stmt := fmt.Sprintf(`INSERT INTO messages (%s) VALUES (%s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET
			session_id = excluded.session_id,
			conversation_id = excluded.conversation_id,
			role = excluded.role,
			content = excluded.content,
			created_at = excluded.created_at,
			importance_score = excluded.importance_score`,
		columns, p(1), p(2), p(3), p(4), p(5), p(6), p(7))

	for _, m := range msgs {
		created := m.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx, stmt,
			m.ID, m.SessionID, m.ConversationID, m.Role, m.Content, created.UTC(), m.ImportanceScore,
		); err != nil {
			return fmt.Errorf("failed to store message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// Get retrieves a message by ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Message, error) {
	msgs, err := d.query(ctx,
		fmt.Sprintf("SELECT %s FROM messages WHERE id = %s", columns, d.Dialect.Placeholder(1)),
		id,
	)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, storage.ErrNotFound{ID: id}
	}
	return msgs[0], nil
}

// FetchByIDs returns the known messages among ids, oldest first.
func (d *Driver) FetchByIDs(ctx context.Context, ids []string, sessionID string) ([]*storage.Message, error) {
	if len(ids) == 0 {
		return []*storage.Message{}, nil
	}

	args := make([]any, 0, len(ids)+1)
	marks := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		marks = append(marks, d.Dialect.Placeholder(len(args)))
	}

	q := fmt.Sprintf("SELECT %s FROM messages WHERE id IN (%s)", columns, strings.Join(marks, ", "))
	if sessionID != "" {
		args = append(args, sessionID)
		q += " AND session_id = " + d.Dialect.Placeholder(len(args))
	}
	q += " ORDER BY created_at, id"

	return d.query(ctx, q, args...)
}

// FetchBySession returns a session's messages oldest first.
func (d *Driver) FetchBySession(ctx context.Context, sessionID string, limit int) ([]*storage.Message, error) {
	return d.fetchRecent(ctx, "session_id", sessionID, limit)
}

// FetchByConversation returns a conversation's messages oldest first.
func (d *Driver) FetchByConversation(ctx context.Context, conversationID string, limit int) ([]*storage.Message, error) {
	return d.fetchRecent(ctx, "conversation_id", conversationID, limit)
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

// fetchRecent selects newest first so LIMIT keeps the most recent rows, then
// flips the page back to ascending order.
func (d *Driver) fetchRecent(ctx context.Context, column, value string, limit int) ([]*storage.Message, error) {
	q := fmt.Sprintf("SELECT %s FROM messages WHERE %s = %s ORDER BY created_at DESC, id DESC",
		columns, column, d.Dialect.Placeholder(1))
	args := []any{value}
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT " + d.Dialect.Placeholder(2)
	}

	msgs, err := d.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (d *Driver) query(ctx context.Context, q string, args ...any) ([]*storage.Message, error) {
	rows, err := d.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := []*storage.Message{}
	for rows.Next() {
		m := &storage.Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt, &m.ImportanceScore); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return out, nil
}

var _ storage.Driver = (*Driver)(nil)
