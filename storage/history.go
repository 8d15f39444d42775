package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID           string
	StartedAt    time.Time
	EndedAt      time.Time
	Topic        string
	TurnOrder    string
	MaxTurns     int
	Status       model.ConversationStatus
	Participants []model.ParticipantInfo
	TurnCount    int
	Favorite     bool
	Notes        string
}

// StoredConversation is a summary plus the full message list.
type StoredConversation struct {
	ConversationSummary
	Messages []model.Message
}

// Transcript converts the stored record back to an engine transcript.
func (c *StoredConversation) Transcript() model.Transcript {
	return model.Transcript{
		ID:           c.ID,
		Topic:        c.Topic,
		Participants: c.Participants,
		Messages:     c.Messages,
		TurnOrder:    c.TurnOrder,
		MaxTurns:     c.MaxTurns,
		Status:       c.Status,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
	}
}

// ListOptions filters ListConversations.
type ListOptions struct {
	Limit         int
	Offset        int
	Search        string // matched against topic and persona names
	FavoritesOnly bool
}

type PersonaCount struct {
	Persona string
	Count   int
}

type Statistics struct {
	TotalConversations int
	TotalMessages      int
	FavoriteCount      int
	TopPersonas        []PersonaCount
}

// HistoryStore keeps finished conversations in SQLite.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// One writer at a time; the engine persists from its worker while the
	// CLI may read.
	db.SetMaxOpenConns(1)

	store := &HistoryStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	return store, nil
}

func (hs *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		turn_order TEXT NOT NULL DEFAULT '',
		max_turns INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		turn_count INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS participants (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		persona TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		PRIMARY KEY (conversation_id, position)
	);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		role TEXT NOT NULL,
		persona TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_started ON conversations(started_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_topic ON conversations(topic);
	CREATE INDEX IF NOT EXISTS idx_conversations_favorite ON conversations(is_favorite);
	CREATE INDEX IF NOT EXISTS idx_participants_persona ON participants(persona);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`

	_, err := hs.db.Exec(schema)
	return err
}

// SaveConversation stores t, replacing any earlier copy with the same id.
// Favourite and notes of an existing row are kept.
func (hs *HistoryStore) SaveConversation(ctx context.Context, t model.Transcript) error {
	if t.ID == "" {
		return errors.New("transcript has no id")
	}

	tx, err := hs.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	endedAt := t.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	upsert := `
	INSERT INTO conversations (id, started_at, ended_at, topic, turn_order, max_turns, status, turn_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		ended_at = excluded.ended_at,
		topic = excluded.topic,
		turn_order = excluded.turn_order,
		max_turns = excluded.max_turns,
		status = excluded.status,
		turn_count = excluded.turn_count
	`
	if _, err := tx.ExecContext(ctx, upsert,
		t.ID,
		t.StartedAt.UTC(),
		endedAt.UTC(),
		t.Topic,
		t.TurnOrder,
		t.MaxTurns,
		string(t.Status),
		t.TurnCount(),
	); err != nil {
		return errors.Wrap(err, "failed to save conversation")
	}

	for _, table := range []string{"participants", "messages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE conversation_id = ?", t.ID); err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}

	for i, p := range t.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participants (conversation_id, position, persona, provider, model) VALUES (?, ?, ?, ?, ?)`,
			t.ID, i, p.Persona, p.Provider, p.Model,
		); err != nil {
			return errors.Wrap(err, "failed to save participant")
		}
	}

	for i, msg := range t.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, turn_number, role, persona, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, i, string(msg.Role), msg.SpeakerName, msg.Content, msg.Timestamp.UTC(),
		); err != nil {
			return errors.Wrap(err, "failed to save message")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit conversation")
}

const summaryColumns = `id, started_at, ended_at, topic, turn_order, max_turns, status, turn_count, is_favorite, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (ConversationSummary, error) {
	var s ConversationSummary
	var status string
	var favorite int
	err := row.Scan(
		&s.ID,
		&s.StartedAt,
		&s.EndedAt,
		&s.Topic,
		&s.TurnOrder,
		&s.MaxTurns,
		&status,
		&s.TurnCount,
		&favorite,
		&s.Notes,
	)
	s.Status = model.ConversationStatus(status)
	s.Favorite = favorite != 0
	return s, err
}

// GetConversation loads one conversation with its messages in turn order.
func (hs *HistoryStore) GetConversation(ctx context.Context, id string) (*StoredConversation, error) {
	row := hs.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM conversations WHERE id = ?`, id)
	summary, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load conversation")
	}

	if summary.Participants, err = hs.participants(ctx, id); err != nil {
		return nil, err
	}

	rows, err := hs.db.QueryContext(ctx,
		`SELECT role, persona, content, created_at FROM messages WHERE conversation_id = ? ORDER BY turn_number`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages")
	}
	defer rows.Close()

	conv := &StoredConversation{ConversationSummary: summary}
	for rows.Next() {
		var msg model.Message
		var role string
		if err := rows.Scan(&role, &msg.SpeakerName, &msg.Content, &msg.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to read message")
		}
		msg.Role = model.Role(role)
		conv.Messages = append(conv.Messages, msg)
	}

	return conv, rows.Err()
}

func (hs *HistoryStore) participants(ctx context.Context, id string) ([]model.ParticipantInfo, error) {
	rows, err := hs.db.QueryContext(ctx,
		`SELECT persona, provider, model FROM participants WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load participants")
	}
	defer rows.Close()

	var result []model.ParticipantInfo
	for rows.Next() {
		var p model.ParticipantInfo
		if err := rows.Scan(&p.Persona, &p.Provider, &p.Model); err != nil {
			return nil, errors.Wrap(err, "failed to read participant")
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListConversations returns summaries, newest first.
func (hs *HistoryStore) ListConversations(ctx context.Context, opts ListOptions) ([]ConversationSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []any
	if opts.FavoritesOnly {
		where = append(where, "is_favorite = 1")
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		term := "%" + search + "%"
		where = append(where, `(topic LIKE ? OR EXISTS (
			SELECT 1 FROM participants p WHERE p.conversation_id = conversations.id AND p.persona LIKE ?))`)
		args = append(args, term, term)
	}

	query := `SELECT ` + summaryColumns + ` FROM conversations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}

	var summaries []ConversationSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to read conversation")
		}
		summaries = append(summaries, s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}

	// Participants are loaded after the cursor is closed; the pool holds a
	// single connection.
	for i := range summaries {
		if summaries[i].Participants, err = hs.participants(ctx, summaries[i].ID); err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

// ToggleFavorite flips the favourite flag and returns the new value.
func (hs *HistoryStore) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	result, err := hs.db.ExecContext(ctx,
		`UPDATE conversations SET is_favorite = CASE is_favorite WHEN 0 THEN 1 ELSE 0 END WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "failed to toggle favorite")
	}
	if err := requireAffected(result); err != nil {
		return false, err
	}

	var favorite int
	if err := hs.db.QueryRowContext(ctx, `SELECT is_favorite FROM conversations WHERE id = ?`, id).Scan(&favorite); err != nil {
		return false, errors.Wrap(err, "failed to read favorite")
	}
	return favorite != 0, nil
}

func (hs *HistoryStore) UpdateNotes(ctx context.Context, id, notes string) error {
	result, err := hs.db.ExecContext(ctx, `UPDATE conversations SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return errors.Wrap(err, "failed to update notes")
	}
	return requireAffected(result)
}

// DeleteConversation removes a conversation with its participants and messages.
func (hs *HistoryStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := hs.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "participants"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE conversation_id = ?", id); err != nil {
			return errors.Wrapf(err, "failed to delete %s", table)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// Statistics reports totals and the five most used personas.
func (hs *HistoryStore) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM conversations`, &stats.TotalConversations},
		{`SELECT COUNT(*) FROM messages`, &stats.TotalMessages},
		{`SELECT COUNT(*) FROM conversations WHERE is_favorite = 1`, &stats.FavoriteCount},
	}
	for _, c := range counts {
		if err := hs.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Statistics{}, errors.Wrap(err, "failed to count")
		}
	}

	rows, err := hs.db.QueryContext(ctx, `
		SELECT persona, COUNT(*) AS uses
		FROM participants
		GROUP BY persona
		ORDER BY uses DESC, persona ASC
		LIMIT 5`)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "failed to rank personas")
	}
	defer rows.Close()

	for rows.Next() {
		var pc PersonaCount
		if err := rows.Scan(&pc.Persona, &pc.Count); err != nil {
			return Statistics{}, errors.Wrap(err, "failed to read persona count")
		}
		stats.TopPersonas = append(stats.TopPersonas, pc)
	}

	return stats, rows.Err()
}

func (hs *HistoryStore) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check affected rows")
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
