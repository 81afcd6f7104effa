package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/constants"
	"github.com/carelink/carelink_backend/pkg/crypto"
)

// SubjectNewMessage is published with the message id after every send.
// The recipient id is appended as the last token.
const SubjectNewMessage = "carelink.message.new"

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type SendRequest struct {
	RecipientID     uuid.UUID
	Content         string
	RelatedResultID *uuid.UUID
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Store interface {
	Create(ctx context.Context, m *repo.Message) error
	ListForUser(ctx context.Context, userID uuid.UUID, counterpart *uuid.UUID) ([]*repo.Message, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (bool, error)
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Service interface {
	Send(ctx context.Context, caller *role.Session, req SendRequest) (uuid.UUID, error)
	// ListConversations returns the caller's conversations, optionally only
	// the one with counterpart.
	ListConversations(ctx context.Context, caller *role.Session, counterpart *uuid.UUID) ([]Conversation, error)
	// MarkRead fails with ErrMessageNotFound unless the caller is the
	// recipient of a still unread message.
	MarkRead(ctx context.Context, caller *role.Session, messageID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type messageService struct {
	store  Store
	codec  crypto.Codec
	events Publisher // nil disables events
	maxLen int
	now    func() time.Time
}

func New(store Store, codec crypto.Codec, events Publisher, cfg *config.Config) Service {
	maxLen := cfg.Messaging.MaxContentLength
	if maxLen <= 0 {
		maxLen = constants.MaxMessageLength
	}
	return &messageService{
		store:  store,
		codec:  codec,
		events: events,
		maxLen: maxLen,
		now:    time.Now,
	}
}

func (s *messageService) Send(ctx context.Context, caller *role.Session, req SendRequest) (uuid.UUID, error) {
	if !caller.Authenticated() {
		return uuid.Nil, ErrAuthRequired
	}
	if req.RecipientID == uuid.Nil || req.RecipientID == caller.UserID {
		return uuid.Nil, ErrInvalidRecipient
	}
	if strings.TrimSpace(req.Content) == "" {
		return uuid.Nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(req.Content) > s.maxLen {
		return uuid.Nil, ErrContentTooLong
	}

	encoded, err := s.codec.Encode(req.Content)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode message: %w", err)
	}

	msg := &repo.Message{
		SenderID:        caller.UserID,
		RecipientID:     req.RecipientID,
		RelatedResultID: req.RelatedResultID,
		Content:         encoded,
	}
	if err := s.store.Create(ctx, msg); err != nil {
		return uuid.Nil, fmt.Errorf("send message: %w", err)
	}

	if s.events != nil {
		subject := fmt.Sprintf("%s.%s", SubjectNewMessage, req.RecipientID)
		if err := s.events.Publish(subject, []byte(msg.ID.String())); err != nil {
			slog.Warn("failed to publish message event", "message_id", msg.ID, "error", err)
		}
	}

	return msg.ID, nil
}

func (s *messageService) ListConversations(ctx context.Context, caller *role.Session, counterpart *uuid.UUID) ([]Conversation, error) {
	if !caller.Authenticated() {
		return nil, ErrAuthRequired
	}

	rows, err := s.store.ListForUser(ctx, caller.UserID, counterpart)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		content, err := s.codec.Decode(r.Content)
		if err != nil {
			// Rows written before a codec change stay readable as stored.
			slog.Warn("failed to decode message", "message_id", r.ID, "error", err)
			content = r.Content
		}
		msgs = append(msgs, Message{
			ID:              r.ID,
			SenderID:        r.SenderID,
			RecipientID:     r.RecipientID,
			RelatedResultID: r.RelatedResultID,
			Content:         content,
			CreatedAt:       r.CreatedAt,
			ReadAt:          r.ReadAt,
		})
	}

	return BuildConversations(caller.UserID, msgs), nil
}

func (s *messageService) MarkRead(ctx context.Context, caller *role.Session, messageID uuid.UUID) error {
	if !caller.Authenticated() {
		return ErrAuthRequired
	}

	ok, err := s.store.MarkRead(ctx, messageID, caller.UserID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !ok {
		return ErrMessageNotFound
	}
	return nil
}
