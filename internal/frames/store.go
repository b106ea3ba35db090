package frames

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/visionsuite/camstream/internal/stream"
)

// ArchivedFrame is one frame pulled back out of the archive. The capture
// timestamp doubles as the sorted-set score, so ordering is by time.
type ArchivedFrame struct {
	SourceID   string
	CapturedAt int64
	Data       []byte
}

// Store keeps a short rolling archive of frames per source in Redis. It is
// the sink the capture loops feed; the TTL bounds memory without any
// explicit eviction pass.
type Store struct {
	redis    *redis.Client
	frameTTL time.Duration
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration) *Store {
	if frameTTL == 0 {
		frameTTL = 60 * time.Second
	}
	return &Store{
		redis:    redisClient,
		frameTTL: frameTTL,
	}
}

func frameKey(sourceID string) string {
	return fmt.Sprintf("source:%s:frames", sourceID)
}

func (s *Store) StoreFrame(ctx context.Context, rec stream.FrameRecord) error {
	key := frameKey(rec.SourceID)
	member := redis.Z{
		Score:  float64(rec.CapturedAt.UnixMilli()),
		Member: rec.Data,
	}

	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, member)
	pipe.Expire(ctx, key, s.frameTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatestFrame(ctx context.Context, sourceID string) (*ArchivedFrame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, frameKey(sourceID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	data, ok := results[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("invalid frame data type")
	}

	return &ArchivedFrame{
		SourceID:   sourceID,
		CapturedAt: int64(results[0].Score),
		Data:       []byte(data),
	}, nil
}

func (s *Store) GetFrames(ctx context.Context, sourceID string, startTime, endTime int64, limit int) ([]*ArchivedFrame, error) {
	opt := &redis.ZRangeBy{
		Min:   strconv.FormatInt(startTime, 10),
		Max:   strconv.FormatInt(endTime, 10),
		Count: int64(limit),
	}

	results, err := s.redis.ZRangeByScoreWithScores(ctx, frameKey(sourceID), opt).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*ArchivedFrame, 0, len(results))
	for _, r := range results {
		data, ok := r.Member.(string)
		if !ok {
			continue
		}
		out = append(out, &ArchivedFrame{
			SourceID:   sourceID,
			CapturedAt: int64(r.Score),
			Data:       []byte(data),
		})
	}

	return out, nil
}

func (s *Store) DeleteFrames(ctx context.Context, sourceID string) error {
	return s.redis.Del(ctx, frameKey(sourceID)).Err()
}
