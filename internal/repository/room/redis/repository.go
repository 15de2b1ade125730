package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

const indexKey = "rooms:index"

// directory advertises live rooms to every instance sharing the redis. It is
// never the source of truth for room state.
type directory struct {
	rc     *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewDirectory(rc *redis.Client, ttl time.Duration, logger *slog.Logger) *directory {
	return &directory{
		rc:     rc,
		ttl:    ttl,
		logger: logger,
	}
}

func (d directory) getRoomKey(code string) string {
	return "room:" + code
}

// Publish stores s and refreshes its expiry.
func (d directory) Publish(ctx context.Context, s room.Summary) error {
	d.logger.DebugContext(ctx, "called", "summary", s)
	pipe := d.rc.TxPipeline()

	roomKey := d.getRoomKey(s.Code)
	d.hSetStruct(ctx, pipe, roomKey, s)
	pipe.Expire(ctx, roomKey, d.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(s.UpdatedAtMs), Member: s.Code})

	if err := d.executePipe(ctx, pipe); err != nil {
		d.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (d directory) Remove(ctx context.Context, code string) error {
	d.logger.DebugContext(ctx, "called", "code", code)
	pipe := d.rc.TxPipeline()

	pipe.Del(ctx, d.getRoomKey(code))
	pipe.ZRem(ctx, indexKey, code)

	if err := d.executePipe(ctx, pipe); err != nil {
		d.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (d directory) Lookup(ctx context.Context, code string) (room.Summary, error) {
	d.logger.DebugContext(ctx, "called", "code", code)

	res := d.rc.HGetAll(ctx, d.getRoomKey(code))
	if err := res.Err(); err != nil {
		return room.Summary{}, err
	}
	if len(res.Val()) == 0 {
		return room.Summary{}, room.ErrRoomNotFound
	}

	var s room.Summary
	if err := res.Scan(&s); err != nil {
		return room.Summary{}, err
	}
	s.UpdatedAt = time.UnixMilli(s.UpdatedAtMs)

	return s, nil
}

// List returns up to limit rooms, most recently updated first. Index entries
// older than the ttl are pruned on the way.
func (d directory) List(ctx context.Context, limit int) ([]room.Summary, error) {
	d.logger.DebugContext(ctx, "called", "limit", limit)

	cutoff := time.Now().Add(-d.ttl).UnixMilli()
	if err := d.rc.ZRemRangeByScore(ctx, indexKey, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}

	codes, err := d.rc.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]room.Summary, 0, len(codes))
	for _, code := range codes {
		s, err := d.Lookup(ctx, code)
		if errors.Is(err, room.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
