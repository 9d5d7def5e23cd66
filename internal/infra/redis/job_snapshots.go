package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// JobSnapshotRepo implements storage.JobSnapshotRepository using Redis.
// Each job is a JSON string under <prefix>:job:<id>; the ids live in the
// set <prefix>:jobs.
type JobSnapshotRepo struct {
	client *Client
}

// NewJobSnapshotRepo creates a new Redis-backed snapshot repository.
func NewJobSnapshotRepo(client *Client) *JobSnapshotRepo {
	return &JobSnapshotRepo{client: client}
}

// Save upserts a job snapshot.
func (r *JobSnapshotRepo) Save(ctx context.Context, job domain.Job) error {
	return r.SaveBatch(ctx, []domain.Job{job})
}

// SaveBatch upserts several snapshots in one transaction.
func (r *JobSnapshotRepo) SaveBatch(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	payloads := make(map[string][]byte, len(jobs))
	for _, j := range jobs {
		data, err := encodeJob(j)
		if err != nil {
			return err
		}
		payloads[string(j.ID)] = data
	}

	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, data := range payloads {
			pipe.Set(ctx, r.client.jobKey(id), data, 0)
			pipe.SAdd(ctx, r.client.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job snapshots: %w", err)
	}
	return nil
}

// Delete removes a snapshot. Unknown ids are ignored.
func (r *JobSnapshotRepo) Delete(ctx context.Context, id domain.JobID) error {
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.client.indexKey(), string(id))
		pipe.Del(ctx, r.client.jobKey(string(id)))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job snapshot: %w", err)
	}
	return nil
}

// LoadAll returns every stored snapshot. Index entries whose payload has
// disappeared or cannot be decoded are logged and pruned.
func (r *JobSnapshotRepo) LoadAll(ctx context.Context) ([]domain.Job, error) {
	ids, err := r.client.rdb.SMembers(ctx, r.client.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.client.jobKey(id)
	}

	values, err := r.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}

	jobs := make([]domain.Job, 0, len(values))
	var stale []any
	var corrupt []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		j, err := decodeJob([]byte(raw))
		if err != nil {
			slog.Warn("Dropping unreadable job snapshot", "component", "redis", "id", ids[i], "error", err)
			corrupt = append(corrupt, r.client.jobKey(ids[i]))
			stale = append(stale, ids[i])
			continue
		}
		jobs = append(jobs, j)
	}

	if len(stale) > 0 {
		_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, r.client.indexKey(), stale...)
			if len(corrupt) > 0 {
				pipe.Del(ctx, corrupt...)
			}
			return nil
		})
		if err != nil {
			slog.Warn("Failed to prune job snapshot index", "component", "redis", "error", err)
		}
	}
	return jobs, nil
}

func encodeJob(j domain.Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job %s: %w", j.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (domain.Job, error) {
	var j domain.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return domain.Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if j.ID == "" {
		return domain.Job{}, fmt.Errorf("failed to unmarshal job: missing id")
	}
	return j, nil
}
