package message

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Message is a decoded message as callers see it.
type Message struct {
	ID              uuid.UUID  `json:"id"`
	SenderID        uuid.UUID  `json:"sender_id"`
	RecipientID     uuid.UUID  `json:"recipient_id"`
	RelatedResultID *uuid.UUID `json:"related_result_id"`
	Content         string     `json:"content"`
	CreatedAt       time.Time  `json:"created_at"`
	ReadAt          *time.Time `json:"read_at"`
}

// Conversation is every message exchanged with one counterpart.
type Conversation struct {
	CounterpartID uuid.UUID `json:"counterpart_id"`
	Messages      []Message `json:"messages"`
	UnreadCount   int       `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// BuildConversations groups msgs by the party that is not self. Messages
// inside a conversation run oldest first; conversations run most recent
// first. Unread counts only messages addressed to self.
func BuildConversations(self uuid.UUID, msgs []Message) []Conversation {
	groups := lo.GroupBy(msgs, func(m Message) uuid.UUID {
		if m.SenderID == self {
			return m.RecipientID
		}
		return m.SenderID
	})

	convs := lo.MapToSlice(groups, func(counterpart uuid.UUID, group []Message) Conversation {
		slices.SortStableFunc(group, compareMessages)
		unread := lo.CountBy(group, func(m Message) bool {
			return m.RecipientID == self && m.ReadAt == nil
		})
		return Conversation{
			CounterpartID: counterpart,
			Messages:      group,
			UnreadCount:   unread,
			LastMessageAt: group[len(group)-1].CreatedAt,
		}
	})

	slices.SortFunc(convs, func(a, b Conversation) int {
		if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
			return c
		}
		return strings.Compare(a.CounterpartID.String(), b.CounterpartID.String())
	})
	return convs
}

func compareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
