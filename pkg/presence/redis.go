package presence

import (
	"context"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/redis/go-redis/v9"
)

// Redis keeps one set of user ids per room, shared by every gateway and read
// by the API.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func Key(room model.Room) string {
	return "room:" + room.String() + ":users"
}

func (p *Redis) Add(ctx context.Context, room model.Room, userID string) error {
	return p.rdb.SAdd(ctx, Key(room), userID).Err()
}

func (p *Redis) Remove(ctx context.Context, room model.Room, userID string) error {
	return p.rdb.SRem(ctx, Key(room), userID).Err()
}

func (p *Redis) Members(ctx context.Context, room model.Room) ([]string, error) {
	return p.rdb.SMembers(ctx, Key(room)).Result()
}
