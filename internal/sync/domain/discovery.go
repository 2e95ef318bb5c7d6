package domain

// SwipeKind definition swipe action kind
type SwipeKind string

const (
	// SwipeLike like a candidate
	SwipeLike SwipeKind = "like"
	// SwipePass pass a candidate
	SwipePass SwipeKind = "pass"
	// SwipeSuperLike super-like a candidate
	SwipeSuperLike SwipeKind = "super_like"
)

// Candidate discovery feed card, profile detail resolved externally
type Candidate struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// LikedYouEntry one entry of the "who liked me" list
type LikedYouEntry struct {
	ActionID string `json:"action_id"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason,omitempty"`
}
