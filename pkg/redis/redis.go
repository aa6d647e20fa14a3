package redis

import (
	"DetectionGateway/internal/entity"
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "detection:"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IRedis caches decoded detection results by image digest.
type IRedis interface {
	GetResult(ctx context.Context, digest string) (*entity.DetectionResult, error)
	SetResult(ctx context.Context, digest string, result *entity.DetectionResult) error
	Close() error
}

type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type redisClient struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logrus.Logger
}

func New(opts Options, log *logrus.Logger) (IRedis, error) {
	if opts.Address == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", opts.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return newRedisClient(client, opts.TTL, log), nil
}

func newRedisClient(client redis.UniversalClient, ttl time.Duration, log *logrus.Logger) *redisClient {
	return &redisClient{client: client, ttl: ttl, log: log}
}

// GetResult returns (nil, nil) on a miss.
func (r *redisClient) GetResult(ctx context.Context, digest string) (*entity.DetectionResult, error) {
	key := keyPrefix + digest
	r.log.Debug(fmt.Sprintf("Getting cached result for key %s", key))

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error getting cached result for key %s: %v", key, err))
		return nil, err
	}

	var result entity.DetectionResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}

	return &result, nil
}

func (r *redisClient) SetResult(ctx context.Context, digest string, result *entity.DetectionResult) error {
	key := keyPrefix + digest

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error caching result for key %s: %v", key, err))
		return err
	}

	r.log.Debug(fmt.Sprintf("Cached result for key %s with expiration %v", key, r.ttl))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
