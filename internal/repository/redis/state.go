package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viewbot/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	stateKeyPrefix = "viewbot:dialog:"
	// abandoned dialogs expire instead of lingering forever
	stateTTL = 24 * time.Hour
)

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// StateStore keeps dialog state in Redis so it survives restarts
type StateStore struct {
	client *redis.Client
}

// NewStateStore connects to Redis and verifies the connection
func NewStateStore(cfg Config) (*StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StateStore{client: client}, nil
}

func stateKey(userID string) string {
	return stateKeyPrefix + userID
}

// Get returns the user's dialog, nil if none is stored
func (s *StateStore) Get(ctx context.Context, userID string) (domain.Dialog, error) {
	data, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dialog: %w", err)
	}
	return domain.DecodeDialog(data)
}

// Set stores the user's dialog; a nil dialog clears it
func (s *StateStore) Set(ctx context.Context, userID string, dialog domain.Dialog) error {
	if dialog == nil {
		return s.Clear(ctx, userID)
	}

	data, err := domain.EncodeDialog(dialog)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, stateKey(userID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("set dialog: %w", err)
	}
	return nil
}

// Clear resets the user to idle
func (s *StateStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear dialog: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *StateStore) Close() error {
	return s.client.Close()
}
