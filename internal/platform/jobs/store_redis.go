package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "carehub:job:"
	redisIndexKey  = "carehub:jobs"
)

// RedisStore keeps jobs as JSON strings plus a sorted-set index by
// creation time. Finished jobs expire after FinishedTTL.
type RedisStore struct {
	client      *redis.Client
	FinishedTTL time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, FinishedTTL: 7 * 24 * time.Hour}
}

// NewRedisClient parses url (redis://...) and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redisKey(id uuid.UUID) string { return redisKeyPrefix + id.String() }

func (s *RedisStore) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	var ttl time.Duration
	if job.Status.Terminal() {
		ttl = s.FinishedTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKey(job.ID), data, ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]*Job, int, error) {
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list job ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("load jobs: %w", err)
	}

	var (
		all   []*Job
		stale []interface{}
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, 0, fmt.Errorf("decode job %s: %w", ids[i], err)
		}
		if opts.matches(&job) {
			all = append(all, &job)
		}
	}
	if len(stale) > 0 {
		// Expired jobs leave their index entry behind.
		s.client.ZRem(ctx, redisIndexKey, stale...)
	}

	sortNewestFirst(all)
	return opts.page(all), len(all), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
