package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewSubscriptionRegistry()

	assert.True(t, r.Join(MatchRoom("A")))
	assert.False(t, r.Join(MatchRoom("A")))

	assert.True(t, r.Has(MatchRoom("A")))
	assert.Equal(t, []string{"match:A"}, r.Desired())
}

func TestRegistry_LeaveAndClear(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Join(UserRoom("u1"))
	r.Join(MatchRoom("A"))

	assert.True(t, r.Leave(MatchRoom("A")))
	assert.False(t, r.Leave(MatchRoom("A")))
	assert.Equal(t, []string{"user:u1"}, r.Desired())

	r.Clear()
	assert.Empty(t, r.Desired())
}

func TestRegistry_DesiredSorted(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Join(MatchRoom("B"))
	r.Join(UserRoom("u1"))
	r.Join(MatchRoom("A"))

	assert.Equal(t, []string{"match:A", "match:B", "user:u1"}, r.Desired())
}
