package domain

// TypingSession definition per conversation typing state.
// Cleared by the store's expiry timer, no explicit stop event required.
type TypingSession struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

// Conversation 表示一個 match 的聊天串
type Conversation struct {
	MatchID      string        `json:"match_id"`
	OtherUserID  string        `json:"other_user_id"`
	Messages     []Message     `json:"messages"`
	Unread       int           `json:"unread"` // derived, never set by callers
	Typing       TypingSession `json:"typing"`
	LastActivity int64         `json:"last_activity"` // ms since epoch
}

// Clone deep copy conversation (messages and reactions included)
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Reactions = CloneReactions(m.Reactions)
		out.Messages[i] = m
	}
	return out
}
