package repo

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Message holds content exactly as stored, that is, encoded.
type Message struct {
	ID              uuid.UUID
	SenderID        uuid.UUID
	RecipientID     uuid.UUID
	RelatedResultID *uuid.UUID
	Content         string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

type MessageStore struct {
	drv dialect.Driver
}

var messageColumns = []string{"id", "sender_id", "recipient_id", "related_result_id", "content", "created_at", "read_at"}

func scanMessage(rows entsql.ColumnScanner) (*Message, error) {
	var (
		m       Message
		related uuid.NullUUID
		readAt  entsql.NullTime
	)
	if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &related, &m.Content, &m.CreatedAt, &readAt); err != nil {
		return nil, err
	}
	m.RelatedResultID = uuidPtr(related)
	m.ReadAt = timePtr(readAt)
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = newID()
	}
	m.CreatedAt = time.Now().UTC()
	m.ReadAt = nil

	q, args := builder().Insert(messagesTable).
		Columns("id", "sender_id", "recipient_id", "related_result_id", "content", "created_at").
		Values(m.ID, m.SenderID, m.RecipientID, nullUUID(m.RelatedResultID), m.Content, m.CreatedAt).
		Query()
	_, err := execAffected(ctx, s.drv, q, args)
	return err
}

// ListForUser returns every message the user sent or received, oldest
// first. A non-nil counterpart keeps only the exchange with that user.
func (s *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID, counterpart *uuid.UUID) ([]*Message, error) {
	q, args := listForUserQuery(userID, counterpart)
	return queryAll(ctx, s.drv, q, args, scanMessage)
}

func listForUserQuery(userID uuid.UUID, counterpart *uuid.UUID) (string, []any) {
	var where *entsql.Predicate
	if counterpart == nil {
		where = entsql.Or(
			entsql.EQ("sender_id", userID),
			entsql.EQ("recipient_id", userID),
		)
	} else {
		where = entsql.Or(
			entsql.And(entsql.EQ("sender_id", userID), entsql.EQ("recipient_id", *counterpart)),
			entsql.And(entsql.EQ("sender_id", *counterpart), entsql.EQ("recipient_id", userID)),
		)
	}
	return builder().Select(messageColumns...).
		From(builder().Table(messagesTable)).
		Where(where).
		OrderBy("created_at", "id").
		Query()
}

// MarkRead sets read_at only on an unread message addressed to recipientID.
// It returns false when no such row exists.
func (s *MessageStore) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (bool, error) {
	q, args := markReadQuery(id, recipientID, at)
	n, err := execAffected(ctx, s.drv, q, args)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func markReadQuery(id, recipientID uuid.UUID, at time.Time) (string, []any) {
	return builder().Update(messagesTable).
		Set("read_at", at).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("recipient_id", recipientID),
			entsql.IsNull("read_at"),
		)).
		Query()
}
