package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"match_sync_service/internal/sync/domain"
	errprocess "match_sync_service/pkg/err"
	"match_sync_service/pkg/token"
)

// SwipeResult server answer to a like/pass/super-like
type SwipeResult struct {
	Matched bool   `json:"matched"`
	MatchID string `json:"match_id,omitempty"`
}

// DiscoveryFilter discovery feed filter object
type DiscoveryFilter struct {
	MinAge      int      `json:"min_age,omitempty"`
	MaxAge      int      `json:"max_age,omitempty"`
	MaxDistance int      `json:"max_distance,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// MatchAPI definition REST backend operations the engine consumes
type MatchAPI interface {
	FetchMatches(ctx context.Context) ([]domain.Conversation, error)
	FetchMessages(ctx context.Context, matchID string, page, limit int) ([]domain.Message, error)
	SendMessage(ctx context.Context, matchID, content string, messageType domain.MessageType) (*domain.Message, error)
	MarkAsRead(ctx context.Context, matchID string) error
	Swipe(ctx context.Context, targetID string, kind domain.SwipeKind) (*SwipeResult, error)
	FetchDiscovery(ctx context.Context, page int, exclude []string, filter DiscoveryFilter) ([]domain.Candidate, error)
}

// apiEnvelope success/failure envelope every endpoint answers with
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// wireUser user reference as the API sends it
type wireUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// wireMessage message as the API sends it (camelCase fields)
type wireMessage struct {
	ID          string `json:"id"`
	MatchID     string `json:"matchId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	MessageType string `json:"messageType"`
	IsRead      bool   `json:"isRead"`
}

func (w wireMessage) toDomain(matchID string) domain.Message {
	if w.MatchID != "" {
		matchID = w.MatchID
	}
	messageType := domain.MessageType(w.MessageType)
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	return domain.Message{
		ID:          w.ID,
		MatchID:     matchID,
		SenderID:    w.SenderID,
		Content:     w.Content,
		MessageType: messageType,
		Timestamp:   w.Timestamp,
		IsRead:      w.IsRead,
		Delivery:    domain.DeliverySent,
	}
}

// wireMatch match list entry as the API sends it
type wireMatch struct {
	MatchID      string   `json:"matchId"`
	MatchedUser  wireUser `json:"matchedUser"`
	LastActivity int64    `json:"lastActivity"`
}

// restMatchAPI MatchAPI on net/http with the 401 refresh-retry contract
type restMatchAPI struct {
	baseURL string
	client  *http.Client
	session *token.Session
}

// NewRESTMatchAPI create the production MatchAPI
func NewRESTMatchAPI(baseURL string, timeout time.Duration, session *token.Session) MatchAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restMatchAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		session: session,
	}
}

// NewAuthRefresher build the token.RefreshFunc against the auth endpoint
func NewAuthRefresher(baseURL string, timeout time.Duration) token.RefreshFunc {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, refreshToken string) (string, string, error) {
		body, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/refresh", bytes.NewReader(body))
		if err != nil {
			return "", "", err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return "", "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", "", fmt.Errorf("refresh rejected: %s", resp.Status)
		}
		var out struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", "", err
		}
		return out.AccessToken, out.RefreshToken, nil
	}
}

// do issue the request; on 401 refresh the session once and retry once
func (r *restMatchAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	status, data, err := r.doOnce(ctx, method, path, payload)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if status == http.StatusUnauthorized {
		if err := r.session.Refresh(ctx); err != nil {
			return errprocess.SetKind(errprocess.KindAuth, "token refresh failed", err)
		}
		status, data, err = r.doOnce(ctx, method, path, payload)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		if status == http.StatusUnauthorized {
			return errprocess.SetKind(errprocess.KindAuth, "session rejected after refresh", nil)
		}
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%s %s: bad envelope: %w", method, path, err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "request failed with status " + strconv.Itoa(status)
		}
		return errors.New(env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: bad data: %w", method, path, err)
		}
	}
	return nil
}

func (r *restMatchAPI) doOnce(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.session.Access())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// FetchMatches pull the match list
func (r *restMatchAPI) FetchMatches(ctx context.Context) ([]domain.Conversation, error) {
	var matches []wireMatch
	if err := r.do(ctx, http.MethodGet, "/matches", nil, &matches); err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.Conversation{
			MatchID:      m.MatchID,
			OtherUserID:  m.MatchedUser.ID,
			LastActivity: m.LastActivity,
		})
	}
	return out, nil
}

// FetchMessages pull one page of a conversation, newest page is 1
func (r *restMatchAPI) FetchMessages(ctx context.Context, matchID string, page, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/matches/%s/messages?page=%d&limit=%d", matchID, page, limit)
	var msgs []wireMessage
	if err := r.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toDomain(matchID))
	}
	return out, nil
}

// SendMessage post a message, answer is the server-confirmed record
func (r *restMatchAPI) SendMessage(ctx context.Context, matchID, content string, messageType domain.MessageType) (*domain.Message, error) {
	body := map[string]string{
		"content":     content,
		"messageType": string(messageType),
	}
	var msg wireMessage
	if err := r.do(ctx, http.MethodPost, "/matches/"+matchID+"/messages", body, &msg); err != nil {
		return nil, err
	}
	confirmed := msg.toDomain(matchID)
	return &confirmed, nil
}

// MarkAsRead mark every inbound message of the conversation read
func (r *restMatchAPI) MarkAsRead(ctx context.Context, matchID string) error {
	return r.do(ctx, http.MethodPost, "/matches/"+matchID+"/read", nil, nil)
}

// Swipe like, pass or super-like a target user
func (r *restMatchAPI) Swipe(ctx context.Context, targetID string, kind domain.SwipeKind) (*SwipeResult, error) {
	body := map[string]string{
		"targetId": targetID,
		"kind":     string(kind),
	}
	var res SwipeResult
	if err := r.do(ctx, http.MethodPost, "/swipes", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchDiscovery pull one page of discovery candidates
func (r *restMatchAPI) FetchDiscovery(ctx context.Context, page int, exclude []string, filter DiscoveryFilter) ([]domain.Candidate, error) {
	body := map[string]interface{}{
		"page":    page,
		"exclude": exclude,
		"filter":  filter,
	}
	var candidates []domain.Candidate
	if err := r.do(ctx, http.MethodPost, "/discovery", body, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
