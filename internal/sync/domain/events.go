package domain

import "encoding/json"

// EventKind definition canonical inbound event kind
type EventKind string

const (
	// EventNewMessage inbound event new-message
	EventNewMessage EventKind = "new-message"
	// EventMessageReaction inbound event message-reaction
	EventMessageReaction EventKind = "message-reaction"
	// EventUserTyping inbound event user-typing
	EventUserTyping EventKind = "user-typing"
	// EventMessagesRead inbound event messages-read
	EventMessagesRead EventKind = "messages-read"
	// EventNewMatch inbound event new-match
	EventNewMatch EventKind = "new-match"
	// EventMatchRemoved inbound event match-removed
	EventMatchRemoved EventKind = "match-removed"
	// EventLikedYou inbound event liked-you-update
	EventLikedYou EventKind = "liked-you-update"
)

const (
	// ControlJoinUserRoom outbound event join-user-room
	ControlJoinUserRoom = "join-user-room"
	// ControlJoinMatchRoom outbound event join-match-room
	ControlJoinMatchRoom = "join-match-room"
	// ControlLeaveMatchRoom outbound event leave-match-room
	ControlLeaveMatchRoom = "leave-match-room"
	// ControlTypingStart outbound event typing-start
	ControlTypingStart = "typing-start"
	// ControlTypingStop outbound event typing-stop
	ControlTypingStop = "typing-stop"
	// ControlOnlineStatus outbound event update-online-status
	ControlOnlineStatus = "update-online-status"
)

// RawEvent wire envelope from the socket, payload shape not yet trusted
type RawEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ReactionChange canonical message-reaction record.
// Server sends the full reaction map, not a delta.
type ReactionChange struct {
	MatchID   string
	MessageID string
	Reactions map[string][]string
}

// TypingChange canonical user-typing record
type TypingChange struct {
	MatchID  string
	UserID   string
	UserName string
	IsTyping bool
}

// ReadMarkers canonical messages-read record
type ReadMarkers struct {
	MatchID  string
	ReaderID string
}

// MatchChange canonical new-match / match-removed record
type MatchChange struct {
	MatchID     string
	OtherUserID string
}

// LikedYouChange canonical liked-you-update record
type LikedYouChange struct {
	Action   string // add or remove
	UserID   string
	ActionID string
	Reason   string
}

// Event canonical normalized record, exactly one payload pointer set per kind
type Event struct {
	Kind     EventKind
	Message  *Message
	Reaction *ReactionChange
	Typing   *TypingChange
	Read     *ReadMarkers
	Match    *MatchChange
	LikedYou *LikedYouChange
}
