package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"learned/internal/models"
)

const keyPrefix = "learned:"

// RedisStore keeps snapshots in Redis so several server instances can share sessions.
// Running actions are marked with SETNX keys that expire after the TTL.
type RedisStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

func NewRedisStoreWithClient(rdb goredis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RedisStore) Close() error { return r.rdb.Close() }

func snapshotKey(session string) string { return keyPrefix + "session:" + session }

func runningKey(session string, action models.Action) string {
	return keyPrefix + "running:" + session + ":" + string(action)
}

func (r *RedisStore) Begin(ctx context.Context, session string, action models.Action) error {
	if session == "" {
		return ErrNoSession
	}
	ok, err := r.rdb.SetNX(ctx, runningKey(session, action), r.now().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if !ok {
		return ErrActionInProgress
	}
	if err := r.rdb.Del(ctx, snapshotKey(session)).Err(); err != nil {
		if relErr := r.rdb.Del(context.WithoutCancel(ctx), runningKey(session, action)).Err(); relErr != nil {
			return fmt.Errorf("clear session: %w (release running: %v)", err, relErr)
		}
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (r *RedisStore) Finish(ctx context.Context, session string, action models.Action) error {
	if err := r.rdb.Del(ctx, runningKey(session, action)).Err(); err != nil {
		return fmt.Errorf("release running: %w", err)
	}
	return nil
}

func (r *RedisStore) Put(ctx context.Context, session string, snap Snapshot) error {
	if session == "" {
		return ErrNoSession
	}
	snap.SessionID = session
	snap.Running = nil
	snap.UpdatedAt = r.now()
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, snapshotKey(session), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, session string) (Snapshot, bool, error) {
	running, err := r.running(ctx, session)
	if err != nil {
		return Snapshot{}, false, err
	}
	raw, err := r.rdb.Get(ctx, snapshotKey(session)).Bytes()
	if errors.Is(err, goredis.Nil) {
		if len(running) == 0 {
			return Snapshot{}, false, nil
		}
		return Snapshot{SessionID: session, Running: running}, true, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Running = running
	return snap, true, nil
}

func (r *RedisStore) Clear(ctx context.Context, session string) error {
	if err := r.rdb.Del(ctx, snapshotKey(session)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (r *RedisStore) running(ctx context.Context, session string) ([]models.Action, error) {
	var out []models.Action
	for _, a := range models.Actions {
		n, err := r.rdb.Exists(ctx, runningKey(session, a)).Result()
		if err != nil {
			return nil, fmt.Errorf("check running: %w", err)
		}
		if n > 0 {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
