package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks a locally issued message id. The server never
// issues ids in this space, so a provisional message can never collide
// with a confirmed one.
const ProvisionalPrefix = "local-"

// DeliveryState definition message delivery state
type DeliveryState string

const (
	// DeliveryPending message sent locally, waiting server confirm
	DeliveryPending DeliveryState = "pending"
	// DeliverySent message confirmed by server
	DeliverySent DeliveryState = "sent"
	// DeliveryFailed message send failed
	DeliveryFailed DeliveryState = "failed"
)

// MessageType definition message content type
type MessageType string

const (
	// MessageTypeText plain text content
	MessageTypeText MessageType = "text"
	// MessageTypeMedia content is a media reference
	MessageTypeMedia MessageType = "media"
)

// Message 表示 conversation 內的一則訊息
type Message struct {
	ID          string              `json:"id"`
	MatchID     string              `json:"match_id"`
	SenderID    string              `json:"sender_id"`
	Content     string              `json:"content"`
	MessageType MessageType         `json:"message_type"`
	Timestamp   int64               `json:"timestamp"` // ms since epoch
	IsRead      bool                `json:"is_read"`
	Delivery    DeliveryState       `json:"delivery"`
	Reactions   map[string][]string `json:"reactions,omitempty"` // emoji -> user ids
}

// IsProvisional report message still waiting server confirm
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// NewProvisionalID create local message id
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.New().String()
}

// CloneReactions deep copy reaction map
func CloneReactions(src map[string][]string) map[string][]string {
	if src == nil {
		return nil
	}
	dst := make(map[string][]string, len(src))
	for emoji, users := range src {
		dst[emoji] = append([]string(nil), users...)
	}
	return dst
}
