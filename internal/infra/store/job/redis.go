package jobstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/you-humble/videovault/internal/domain"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps one hash per job plus a by-created index used by the
// janitor. Records outlive the retention window (the janitor purges them at
// 2x retention) so that polling an expired job still returns its record;
// the key TTL below is only a safety net against a janitor that never runs.
type redisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *redisStore {
	return &redisStore{rdb: rdb}
}

// Guarded writes run as Lua so the terminal-state check and the write are a
// single atomic step. A plain check-then-HSet would let a cleanup Delete land
// in between and the late HSet would recreate the key as a partial record
// with no TTL and no index entry.
var guardedHSet = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
local status = redis.call("HGET", KEYS[1], "status")
if status == "completed" or status == "error" or status == "expired" then
	return 0
end
for i = 1, #ARGV, 2 do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

var progressHSet = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if redis.call("HGET", KEYS[1], "status") ~= "processing" then
	return 0
end
local cur = tonumber(redis.call("HGET", KEYS[1], "progress")) or 0
if tonumber(ARGV[1]) <= cur then
	return 0
end
redis.call("HSET", KEYS[1], "progress", ARGV[1])
return 1
`)

func (s *redisStore) Create(ctx context.Context, job domain.Job, ttl time.Duration) error {
	hk := jobKey(job.ID)

	pipe := s.rdb.TxPipeline()

	pipe.HSet(ctx, hk, map[string]interface{}{
		"id":                job.ID,
		"status":            string(job.Status),
		"progress":          job.Progress,
		"url":               job.URL,
		"format":            job.Format,
		"quality":           job.Quality,
		"title":             job.Title,
		"file_size":         job.FileSize,
		"download_location": job.DownloadLocation,
		"artifact_key":      job.ArtifactKey,
		"error_message":     job.ErrorMessage,
		"created_at":        job.CreatedAt.UnixNano(),
		"completed_at":      int64(0),
		"expires_at":        job.ExpiresAt.UnixNano(),
	})
	pipe.Expire(ctx, hk, 2*ttl)

	pipe.ZAdd(ctx, jobsByCreatedKey(), redis.Z{
		Score:  float64(job.CreatedAt.Unix()),
		Member: job.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline Create: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (domain.Job, bool) {
	res, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil || len(res) == 0 {
		return domain.Job{}, false
	}

	job := domain.Job{
		ID:               id,
		Status:           domain.JobStatus(res["status"]),
		URL:              res["url"],
		Format:           res["format"],
		Quality:          res["quality"],
		Title:            res["title"],
		DownloadLocation: res["download_location"],
		ArtifactKey:      res["artifact_key"],
		ErrorMessage:     res["error_message"],
	}

	if v := res["progress"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Progress = n
		}
	}
	if v := res["file_size"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.FileSize = n
		}
	}
	if v := res["created_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.CreatedAt = time.Unix(0, n)
		}
	}
	if v := res["completed_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			job.CompletedAt = time.Unix(0, n)
		}
	}
	if v := res["expires_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.ExpiresAt = time.Unix(0, n)
		}
	}

	return job, true
}

func (s *redisStore) SetProcessing(ctx context.Context, id string) {
	s.guardedWrite(ctx, "SetProcessing", id,
		"status", string(domain.StatusProcessing))
}

func (s *redisStore) SetProgress(ctx context.Context, id string, progress int) {
	if err := progressHSet.Run(ctx, s.rdb, []string{jobKey(id)}, progress).Err(); err != nil {
		slog.Warn("redis SetProgress", slog.String("error", err.Error()))
	}
}

func (s *redisStore) SetCompleted(ctx context.Context, id string, res domain.JobResult) {
	s.guardedWrite(ctx, "SetCompleted", id,
		"status", string(domain.StatusCompleted),
		"progress", 100,
		"title", res.Title,
		"file_size", res.FileSize,
		"artifact_key", res.ArtifactKey,
		"download_location", res.Location,
		"error_message", "",
		"completed_at", time.Now().UnixNano(),
	)
}

func (s *redisStore) SetFailed(ctx context.Context, id string, reason string) {
	s.guardedWrite(ctx, "SetFailed", id,
		"status", string(domain.StatusError),
		"error_message", reason,
		"completed_at", time.Now().UnixNano(),
	)
}

func (s *redisStore) SetExpired(ctx context.Context, id string) {
	s.guardedWrite(ctx, "SetExpired", id,
		"status", string(domain.StatusExpired))
}

func (s *redisStore) guardedWrite(ctx context.Context, op, id string, fieldValues ...any) {
	if err := guardedHSet.Run(ctx, s.rdb, []string{jobKey(id)}, fieldValues...).Err(); err != nil {
		slog.Warn("redis "+op, slog.String("error", err.Error()))
	}
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.ZRem(ctx, jobsByCreatedKey(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline Delete: %w", err)
	}
	return nil
}

func (s *redisStore) Expired(ctx context.Context, now time.Time) []string {
	ids, err := s.rdb.ZRangeByScore(ctx, jobsByCreatedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprint(now.Unix()),
	}).Result()
	if err != nil {
		return nil
	}

	var expired []string
	for _, id := range ids {
		job, ok := s.Get(ctx, id)
		if !ok {
			continue
		}
		if job.Expired(now) {
			expired = append(expired, id)
		}
	}
	return expired
}

func (s *redisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) int {
	ids, err := s.rdb.ZRangeByScore(ctx, jobsByCreatedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprint(cutoff.Unix()),
	}).Result()
	if err != nil {
		return 0
	}

	deleted := 0
	for _, id := range ids {
		if err := s.Delete(ctx, id); err == nil {
			deleted++
		}
	}
	return deleted
}

func jobKey(id string) string {
	return "job:" + id
}

func jobsByCreatedKey() string {
	return "jobs:by_created"
}
