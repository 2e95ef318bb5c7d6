package app

import (
	"encoding/json"
	"testing"

	"match_sync_service/internal/sync/domain"
	errprocess "match_sync_service/pkg/err"

	"github.com/stretchr/testify/assert"
)

func rawEvent(kind, payload string) domain.RawEvent {
	return domain.RawEvent{Event: kind, Payload: json.RawMessage(payload)}
}

func TestNormalize_NewMessageNestedShape(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("new-message",
		`{"matchId":"match-1","message":{"id":"m1","senderId":"u2","content":"hey","timestamp":1700000000000}}`))

	assert.NoError(t, err)
	assert.Equal(t, domain.EventNewMessage, event.Kind)
	assert.Equal(t, "m1", event.Message.ID)
	assert.Equal(t, "match-1", event.Message.MatchID)
	assert.Equal(t, "u2", event.Message.SenderID)
	assert.Equal(t, domain.MessageTypeText, event.Message.MessageType)
	assert.Equal(t, int64(1700000000000), event.Message.Timestamp)
}

func TestNormalize_NewMessageFlatShape(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("new-message",
		`{"id":"m1","matchId":"match-1","senderId":"u2","content":"hey","messageType":"media","timestamp":5}`))

	assert.NoError(t, err)
	assert.Equal(t, "m1", event.Message.ID)
	assert.Equal(t, domain.MessageTypeMedia, event.Message.MessageType)
}

func TestNormalize_NewMessageZeroTimestampGetsNow(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("new-message",
		`{"id":"m1","matchId":"match-1","senderId":"u2","content":"hey"}`))

	assert.NoError(t, err)
	assert.Greater(t, event.Message.Timestamp, int64(0))
}

func TestNormalize_NewMessageMissingIDRejected(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(rawEvent("new-message", `{"matchId":"match-1","senderId":"u2"}`))

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindNormalization, errprocess.KindOf(err))
}

func TestNormalize_UnknownKindRejected(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(rawEvent("profile-viewed", `{}`))

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindNormalization, errprocess.KindOf(err))
}

func TestNormalize_Reaction(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("message-reaction",
		`{"matchId":"match-1","messageId":"m1","reactions":{"🔥":["u2"]}}`))

	assert.NoError(t, err)
	assert.Equal(t, domain.EventMessageReaction, event.Kind)
	assert.Equal(t, []string{"u2"}, event.Reaction.Reactions["🔥"])
}

func TestNormalize_Typing(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("user-typing",
		`{"matchId":"match-1","userId":"u2","userName":"Sam","isTyping":true}`))

	assert.NoError(t, err)
	assert.True(t, event.Typing.IsTyping)
	assert.Equal(t, "Sam", event.Typing.UserName)
}

func TestNormalize_MessagesReadReaderOptional(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("messages-read", `{"matchId":"match-1"}`))

	assert.NoError(t, err)
	assert.Equal(t, "match-1", event.Read.MatchID)
	assert.Empty(t, event.Read.ReaderID)
}

func TestNormalize_NewMatch(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("new-match",
		`{"matchId":"match-9","matchedUser":{"id":"u7"}}`))

	assert.NoError(t, err)
	assert.Equal(t, "match-9", event.Match.MatchID)
	assert.Equal(t, "u7", event.Match.OtherUserID)
}

func TestNormalize_MatchRemovedMissingIDRejected(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(rawEvent("match-removed", `{}`))

	assert.Error(t, err)
}

func TestNormalize_LikedYouUserObject(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("liked-you-update",
		`{"action":"add","actionId":"a1","user":{"id":"u5"},"reason":"super_like"}`))

	assert.NoError(t, err)
	assert.Equal(t, "add", event.LikedYou.Action)
	assert.Equal(t, "u5", event.LikedYou.UserID)
	assert.Equal(t, "super_like", event.LikedYou.Reason)
}

func TestNormalize_LikedYouUserBareString(t *testing.T) {
	n := NewNormalizer()

	event, err := n.Normalize(rawEvent("liked-you-update",
		`{"action":"remove","user":"u5"}`))

	assert.NoError(t, err)
	assert.Equal(t, "u5", event.LikedYou.UserID)
}

func TestNormalize_LikedYouBadActionRejected(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(rawEvent("liked-you-update", `{"action":"ping","user":"u5"}`))

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindNormalization, errprocess.KindOf(err))
}
