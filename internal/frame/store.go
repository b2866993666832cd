package frame

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eidolon-live/eidolon/internal/shared"
)

// Store keeps a session's recent encoded frames in a Redis sorted set
// scored by capture timestamp. The whole set expires after the TTL; it
// is a short review window, not an archive.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &Store{redis: redisClient, ttl: ttl}
}

func framesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:frames", sessionID)
}

// Append records a frame and refreshes the window TTL.
func (s *Store) Append(ctx context.Context, f *Frame) error {
	key := framesKey(f.SessionID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(f.Timestamp),
		Member: f.Encoded,
	})
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Latest returns the most recently captured frame, or shared.ErrNoFrame
// when the window is empty.
func (s *Store) Latest(ctx context.Context, sessionID string) (*Frame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, framesKey(sessionID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, shared.ErrNoFrame
	}
	return memberFrame(sessionID, results[0])
}

// Range returns frames captured between from and to inclusive, oldest
// first, capped at limit when limit is positive.
func (s *Store) Range(ctx context.Context, sessionID string, from, to int64, limit int) ([]*Frame, error) {
	opt := &redis.ZRangeBy{
		Min: strconv.FormatInt(from, 10),
		Max: strconv.FormatInt(to, 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	results, err := s.redis.ZRangeByScoreWithScores(ctx, framesKey(sessionID), opt).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]*Frame, 0, len(results))
	for _, r := range results {
		f, err := memberFrame(sessionID, r)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Drop discards the session's window entirely.
func (s *Store) Drop(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, framesKey(sessionID)).Err()
}

func memberFrame(sessionID string, z redis.Z) (*Frame, error) {
	data, ok := z.Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected frame member type %T", z.Member)
	}
	return &Frame{
		SessionID: sessionID,
		Timestamp: int64(z.Score),
		Encoded:   []byte(data),
	}, nil
}
