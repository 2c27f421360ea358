package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/storage/models"
	"github.com/campus-assist/backend/pkg/logger"
)

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrInvalidFeedback = errors.New("feedback must be -1, 0 or 1")
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which is all this store needs.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		bot_response TEXT NOT NULL,
		language_detected TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		feedback INTEGER NOT NULL DEFAULT 0,
		forwarded_to_admin INTEGER NOT NULL DEFAULT 0,
		admin_response TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_forwarded ON conversations(forwarded_to_admin);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertConversation stores a new turn and sets conv.ID.
func (c *Client) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (session_id, user_message, bot_response, language_detected,
			confidence_score, feedback, forwarded_to_admin, admin_response, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	res, err := c.db.ExecContext(ctx,
		query,
		conv.SessionID,
		conv.UserMessage,
		conv.BotResponse,
		conv.LanguageDetected,
		conv.ConfidenceScore,
		conv.Feedback,
		boolToInt(conv.ForwardedToAdmin),
		conv.AdminResponse,
		conv.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read conversation id: %w", err)
	}
	conv.ID = id

	logger.Debug("Conversation recorded",
		zap.Int64("conversation_id", id),
		zap.String("session_id", conv.SessionID),
		zap.String("language", conv.LanguageDetected),
	)

	return nil
}

func (c *Client) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
		SELECT id, session_id, user_message, bot_response, language_detected, confidence_score,
			feedback, forwarded_to_admin, admin_response, timestamp
		FROM conversations WHERE id = ?
	`

	conv, err := scanConversation(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// UpdateFeedback records a vote on an existing turn. It never creates rows.
func (c *Client) UpdateFeedback(ctx context.Context, id int64, vote int) error {
	if !models.ValidFeedback(vote) {
		return ErrInvalidFeedback
	}

	res, err := c.db.ExecContext(ctx, `UPDATE conversations SET feedback = ? WHERE id = ?`, vote, id)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}

	if err := requireAffected(res); err != nil {
		return err
	}

	logger.Info("Feedback stored",
		zap.Int64("conversation_id", id),
		zap.Int("feedback", vote),
	)

	return nil
}

// ForwardToAdmin flags a turn for admin follow-up. A non-empty note is kept
// in admin_response prefixed with "User context: ".
func (c *Client) ForwardToAdmin(ctx context.Context, id int64, note string) error {
	var (
		res sql.Result
		err error
	)

	if note != "" {
		res, err = c.db.ExecContext(ctx,
			`UPDATE conversations SET forwarded_to_admin = 1, admin_response = ? WHERE id = ?`,
			"User context: "+note, id,
		)
	} else {
		res, err = c.db.ExecContext(ctx, `UPDATE conversations SET forwarded_to_admin = 1 WHERE id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("failed to forward conversation: %w", err)
	}

	if err := requireAffected(res); err != nil {
		return err
	}

	logger.Info("Conversation forwarded to admin", zap.Int64("conversation_id", id))
	return nil
}

// ListBySession returns a session's turns, oldest first.
func (c *Client) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	query := `
		SELECT id, session_id, user_message, bot_response, language_detected, confidence_score,
			feedback, forwarded_to_admin, admin_response, timestamp
		FROM conversations
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	return c.list(ctx, query, sessionID, limit)
}

// ListForwarded returns turns escalated to an admin, newest first.
func (c *Client) ListForwarded(ctx context.Context, limit int) ([]models.Conversation, error) {
	query := `
		SELECT id, session_id, user_message, bot_response, language_detected, confidence_score,
			feedback, forwarded_to_admin, admin_response, timestamp
		FROM conversations
		WHERE forwarded_to_admin = 1
		ORDER BY id DESC
		LIMIT ?
	`

	return c.list(ctx, query, limit)
}

func (c *Client) list(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	records := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, *conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conv      models.Conversation
		forwarded int
		admin     sql.NullString
		createdAt int64
	)

	err := row.Scan(
		&conv.ID,
		&conv.SessionID,
		&conv.UserMessage,
		&conv.BotResponse,
		&conv.LanguageDetected,
		&conv.ConfidenceScore,
		&conv.Feedback,
		&forwarded,
		&admin,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	conv.ForwardedToAdmin = forwarded == 1
	if admin.Valid {
		s := admin.String
		conv.AdminResponse = &s
	}
	conv.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &conv, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
