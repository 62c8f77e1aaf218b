package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshTokenKeyPrefix = "refresh_token:"

// TokenStoreInterface defines the interface for refresh token storage.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, userID uint, email string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (userID uint, email string, err error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
}

// TokenStore keeps refresh tokens in Redis. Unlike the read-through cache it
// surfaces write errors: a refresh token that was never stored must fail the
// login, not silently disable refresh.
type TokenStore struct {
	rdb *redis.Client
}

var _ TokenStoreInterface = (*TokenStore)(nil)

type refreshTokenRecord struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
}

// NewTokenStore creates a new token store.
func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// StoreRefreshToken stores a refresh token in Redis with TTL.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uint, email string, ttl time.Duration) error {
	payload, err := json.Marshal(refreshTokenRecord{UserID: userID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}
	if err := s.rdb.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves refresh token data from Redis.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uint, string, error) {
	data, err := s.rdb.Get(ctx, refreshTokenKeyPrefix+tokenID).Bytes()
	if err == redis.Nil {
		return 0, "", fmt.Errorf("refresh token not found")
	}
	if err != nil {
		return 0, "", fmt.Errorf("read refresh token: %w", err)
	}

	var record refreshTokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return 0, "", fmt.Errorf("unmarshal token data: %w", err)
	}
	return record.UserID, record.Email, nil
}

// DeleteRefreshToken removes a refresh token from Redis.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	if err := s.rdb.Del(ctx, refreshTokenKeyPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
