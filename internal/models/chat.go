package models

import "time"

// Chat represents a private conversation between exactly two users,
// typically a doctor and a patient. The pair is stored normalized
// (user1_id < user2_id) so at most one chat can exist per pair.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the chat member that is not userID.
func (c Chat) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID is one of the chat's two users.
func (c Chat) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ChatListEntry is a chat joined with its most recent message, as stored.
type ChatListEntry struct {
	Chat        Chat
	LastMessage *Message
}

// ChatSummary provides the API-friendly view of a chat for a user.
type ChatSummary struct {
	ChatID      int       `json:"chat_id"`
	Counterpart User      `json:"counterpart"`
	LastMessage *Message  `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
