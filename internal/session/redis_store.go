// Package session provides the Redis-backed stores for refresh tokens and
// contribution draft recovery.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"curator/api/internal/contribution"
	"curator/api/internal/store"

	"github.com/redis/go-redis/v9"
)

// ErrDraftNotFound is returned when no draft is saved for the key.
var ErrDraftNotFound = errors.New("draft not found")

// tokenData is what we keep per refresh token.
type tokenData struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore holds refresh sessions and contribution drafts. Drafts are an
// opt-in recovery mechanism keyed by user and entity, TTL-bound, and
// cleared on successful submission.
type RedisStore struct {
	client      *redis.Client
	tokenPrefix string
	draftPrefix string
	draftTTL    time.Duration
}

func NewRedisStore(redisURL string, draftTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client:      client,
		tokenPrefix: "refresh:",
		draftPrefix: "draft:",
		draftTTL:    draftTTL,
	}, nil
}

// ---- refresh sessions ----

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	data, err := json.Marshal(tokenData{UserID: userID, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.tokenPrefix+tokenHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.Get(ctx, s.tokenPrefix+tokenHash).Result()
	if err == redis.Nil {
		return store.User{}, fmt.Errorf("token not found or expired")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return store.User{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	return store.User{ID: data.UserID, Role: data.Role}, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.tokenPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// ---- contribution drafts ----

func (s *RedisStore) draftKey(userID string, entityType contribution.EntityType, entityID string) string {
	return fmt.Sprintf("%s%s:%s:%s", s.draftPrefix, userID, entityType, entityID)
}

func (s *RedisStore) SaveDraft(ctx context.Context, userID string, draft contribution.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	key := s.draftKey(userID, draft.EntityType, draft.EntityID)
	if err := s.client.Set(ctx, key, data, s.draftTTL).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadDraft(ctx context.Context, userID string, entityType contribution.EntityType, entityID string) (contribution.Draft, error) {
	raw, err := s.client.Get(ctx, s.draftKey(userID, entityType, entityID)).Result()
	if err == redis.Nil {
		return contribution.Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return contribution.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var draft contribution.Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return contribution.Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

// ClearDraft removes a saved draft, including the clear-on-submit path
// after a contribution is created.
func (s *RedisStore) ClearDraft(ctx context.Context, userID string, entityType contribution.EntityType, entityID string) error {
	if err := s.client.Del(ctx, s.draftKey(userID, entityType, entityID)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
