package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"examhub_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const issuanceQueueKey = "examhub:issuance:pending"

// IssuanceQueue is a Redis-backed delay queue for certificate deliveries
// that failed against the issuer. Jobs are sorted by their next run time.
type IssuanceQueue struct {
	rdb *redis.Client
}

func NewIssuanceQueue(rdb *redis.Client) *IssuanceQueue {
	return &IssuanceQueue{rdb: rdb}
}

func (q *IssuanceQueue) Enqueue(ctx context.Context, job model.IssuanceJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, issuanceQueueKey, &redis.Z{
		Score:  float64(job.NextRunAt.Unix()),
		Member: payload,
	}).Err()
}

// PopDue removes and returns every job whose run time is at or before now.
func (q *IssuanceQueue) PopDue(ctx context.Context, now time.Time) ([]model.IssuanceJob, error) {
	max := strconv.FormatInt(now.Unix(), 10)
	raw, err := q.rdb.ZRangeByScore(ctx, issuanceQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	jobs := make([]model.IssuanceJob, 0, len(raw))
	for _, member := range raw {
		var job model.IssuanceJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// Unreadable member; drop it rather than poison the queue.
			q.rdb.ZRem(ctx, issuanceQueueKey, member)
			continue
		}
		if err := q.rdb.ZRem(ctx, issuanceQueueKey, member).Err(); err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *IssuanceQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, issuanceQueueKey).Result()
}
