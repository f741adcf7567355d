package partials

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// RedisStore keeps partial sources in a Redis hash
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisStore creates a new Redis partial store
func NewRedisStore(client *redis.Client, key string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Load registers every stored partial into env and returns how many were
// loaded
func (s *RedisStore) Load(ctx context.Context, env *render.Environment) (int, error) {
	sources, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to load partials: %w", err)
	}

	for name, source := range sources {
		env.RegisterPartial(name, source)
	}

	s.logger.Info("loaded partials from redis",
		zap.String("key", s.key),
		zap.Int("count", len(sources)),
	)

	return len(sources), nil
}

// Save stores a partial's source
func (s *RedisStore) Save(ctx context.Context, name, source string) error {
	if err := s.client.HSet(ctx, s.key, name, source).Err(); err != nil {
		return fmt.Errorf("failed to save partial %q: %w", name, err)
	}
	return nil
}

// Delete removes a stored partial
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("failed to delete partial %q: %w", name, err)
	}
	return nil
}

// Get returns one stored partial's source
func (s *RedisStore) Get(ctx context.Context, name string) (string, error) {
	source, err := s.client.HGet(ctx, s.key, name).Result()
	if err != nil {
		if err == redis.Nil {
			return "", &render.UnknownPartialError{Name: name}
		}
		return "", fmt.Errorf("failed to get partial %q: %w", name, err)
	}
	return source, nil
}
