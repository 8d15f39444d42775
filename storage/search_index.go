package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type MessageMatch struct {
	ConversationID string
	Topic          string
	TurnNumber     int
	Role           string
	Persona        string
	Preview        string
}

// SearchMessages finds messages whose content contains query, newest
// conversations first.
func (hs *HistoryStore) SearchMessages(ctx context.Context, query string, limit int) ([]MessageMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageMatch{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := hs.db.QueryContext(ctx, `
		SELECT m.conversation_id, c.topic, m.turn_number, m.role, m.persona, m.content
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.content LIKE ?
		ORDER BY c.started_at DESC, m.turn_number ASC
		LIMIT ?`, "%"+query+"%", limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search messages")
	}
	defer rows.Close()

	matches := []MessageMatch{}
	for rows.Next() {
		var m MessageMatch
		var content string
		if err := rows.Scan(&m.ConversationID, &m.Topic, &m.TurnNumber, &m.Role, &m.Persona, &content); err != nil {
			return nil, errors.Wrap(err, "failed to read match")
		}
		m.Preview = preview(content, query)
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// preview returns up to 100 bytes of content around the first match.
func preview(content, query string) string {
	const width = 100
	if len(content) <= width {
		return content
	}

	start := 0
	if idx := strings.Index(strings.ToLower(content), strings.ToLower(query)); idx > width/2 {
		start = idx - width/2
	}
	end := min(start+width, len(content))

	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
