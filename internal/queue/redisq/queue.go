// Package redisq backs the job queue with a Redis list so jobs survive
// process restarts and multiple workers can share one queue.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"equitrail/internal/queue"
)

const defaultKey = "equitrail:jobs"

// Queue implements queue.Queue over a Redis list (LPUSH producer side,
// BRPOP consumer side).
type Queue struct {
	client *goredis.Client
	key    string
}

// New creates a Redis-backed queue. An empty key uses the default.
func New(client *goredis.Client, key string) *Queue {
	if key == "" {
		key = defaultKey
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Enqueue(ctx context.Context, job queue.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush job: %w", err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (queue.Job, error) {
	for {
		// Short BRPOP timeout so context cancellation is observed promptly.
		res, err := q.client.BRPop(ctx, 2*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				if ctx.Err() != nil {
					return queue.Job{}, ctx.Err()
				}
				continue
			}
			return queue.Job{}, fmt.Errorf("brpop job: %w", err)
		}
		// res is [key, value]
		var job queue.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return queue.Job{}, fmt.Errorf("unmarshal job: %w", err)
		}
		return job, nil
	}
}
