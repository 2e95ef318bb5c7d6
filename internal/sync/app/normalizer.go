package app

import (
	"encoding/json"
	"time"

	"match_sync_service/internal/sync/domain"
	errprocess "match_sync_service/pkg/err"
)

// Normalizer maps heterogeneous inbound payload shapes into the
// canonical event set. One parse function per raw shape; business
// logic never sees a raw payload.
type Normalizer struct{}

// NewNormalizer create Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// wireMessage message payload as pushed over the socket
type wireMessage struct {
	ID          string `json:"id"`
	MatchID     string `json:"matchId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	MessageType string `json:"messageType"`
	IsRead      bool   `json:"isRead"`
}

// Normalize produce exactly one canonical record for a raw event.
// Unknown kinds and malformed payloads come back as normalization
// errors, the caller logs and drops them, never fatal.
func (n *Normalizer) Normalize(raw domain.RawEvent) (*domain.Event, error) {
	switch domain.EventKind(raw.Event) {
	case domain.EventNewMessage:
		return n.parseNewMessage(raw.Payload)
	case domain.EventMessageReaction:
		return n.parseReaction(raw.Payload)
	case domain.EventUserTyping:
		return n.parseTyping(raw.Payload)
	case domain.EventMessagesRead:
		return n.parseMessagesRead(raw.Payload)
	case domain.EventNewMatch:
		return n.parseNewMatch(raw.Payload)
	case domain.EventMatchRemoved:
		return n.parseMatchRemoved(raw.Payload)
	case domain.EventLikedYou:
		return n.parseLikedYou(raw.Payload)
	default:
		return nil, errprocess.SetKind(errprocess.KindNormalization, "unknown event kind: "+raw.Event, nil)
	}
}

// parseNewMessage accept both observed shapes: message nested under a
// `message` key, or flattened at top level next to matchId
func (n *Normalizer) parseNewMessage(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		Message *wireMessage `json:"message"`
		wireMessage
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "new-message payload unparsable", err)
	}

	msg := p.wireMessage
	if p.Message != nil {
		matchID := p.wireMessage.MatchID
		msg = *p.Message
		if msg.MatchID == "" {
			msg.MatchID = matchID
		}
	}
	if msg.ID == "" || msg.SenderID == "" || msg.MatchID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "new-message missing id/senderId/matchId", nil)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	messageType := domain.MessageType(msg.MessageType)
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	record := domain.Message{
		ID:          msg.ID,
		MatchID:     msg.MatchID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		MessageType: messageType,
		Timestamp:   msg.Timestamp,
		IsRead:      msg.IsRead,
		Delivery:    domain.DeliverySent,
	}
	return &domain.Event{Kind: domain.EventNewMessage, Message: &record}, nil
}

func (n *Normalizer) parseReaction(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		MatchID   string              `json:"matchId"`
		MessageID string              `json:"messageId"`
		Reactions map[string][]string `json:"reactions"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "message-reaction payload unparsable", err)
	}
	if p.MatchID == "" || p.MessageID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "message-reaction missing matchId/messageId", nil)
	}
	return &domain.Event{
		Kind: domain.EventMessageReaction,
		Reaction: &domain.ReactionChange{
			MatchID:   p.MatchID,
			MessageID: p.MessageID,
			Reactions: p.Reactions,
		},
	}, nil
}

func (n *Normalizer) parseTyping(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		MatchID  string `json:"matchId"`
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "user-typing payload unparsable", err)
	}
	if p.MatchID == "" || p.UserID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "user-typing missing matchId/userId", nil)
	}
	return &domain.Event{
		Kind: domain.EventUserTyping,
		Typing: &domain.TypingChange{
			MatchID:  p.MatchID,
			UserID:   p.UserID,
			UserName: p.UserName,
			IsTyping: p.IsTyping,
		},
	}, nil
}

// parseMessagesRead readerId is optional on the wire, absence means
// the counterpart read
func (n *Normalizer) parseMessagesRead(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		MatchID  string `json:"matchId"`
		ReaderID string `json:"readerId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "messages-read payload unparsable", err)
	}
	if p.MatchID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "messages-read missing matchId", nil)
	}
	return &domain.Event{
		Kind: domain.EventMessagesRead,
		Read: &domain.ReadMarkers{MatchID: p.MatchID, ReaderID: p.ReaderID},
	}, nil
}

func (n *Normalizer) parseNewMatch(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		MatchID     string `json:"matchId"`
		MatchedUser struct {
			ID string `json:"id"`
		} `json:"matchedUser"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "new-match payload unparsable", err)
	}
	if p.MatchID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "new-match missing matchId", nil)
	}
	return &domain.Event{
		Kind:  domain.EventNewMatch,
		Match: &domain.MatchChange{MatchID: p.MatchID, OtherUserID: p.MatchedUser.ID},
	}, nil
}

func (n *Normalizer) parseMatchRemoved(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		MatchID string `json:"matchId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "match-removed payload unparsable", err)
	}
	if p.MatchID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "match-removed missing matchId", nil)
	}
	return &domain.Event{
		Kind:  domain.EventMatchRemoved,
		Match: &domain.MatchChange{MatchID: p.MatchID},
	}, nil
}

// parseLikedYou the user field arrives as an object in newer payloads
// and a bare id string in older ones, accept both
func (n *Normalizer) parseLikedYou(payload json.RawMessage) (*domain.Event, error) {
	var p struct {
		Action   string          `json:"action"`
		User     json.RawMessage `json:"user"`
		ActionID string          `json:"actionId"`
		Reason   string          `json:"reason"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "liked-you-update payload unparsable", err)
	}
	if p.Action != "add" && p.Action != "remove" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "liked-you-update bad action: "+p.Action, nil)
	}

	var userID string
	if len(p.User) > 0 {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p.User, &obj); err == nil && obj.ID != "" {
			userID = obj.ID
		} else if err := json.Unmarshal(p.User, &userID); err != nil {
			return nil, errprocess.SetKind(errprocess.KindNormalization, "liked-you-update bad user field", err)
		}
	}
	if userID == "" {
		return nil, errprocess.SetKind(errprocess.KindNormalization, "liked-you-update missing user", nil)
	}

	return &domain.Event{
		Kind: domain.EventLikedYou,
		LikedYou: &domain.LikedYouChange{
			Action:   p.Action,
			UserID:   userID,
			ActionID: p.ActionID,
			Reason:   p.Reason,
		},
	}, nil
}
