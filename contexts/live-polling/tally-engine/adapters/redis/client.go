package redisadapter

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// Client is the subset of redis commands the repository issues.
type Client interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) (any, error)
	ScriptLoad(ctx context.Context, script string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// NewClientAdapter wraps a go-redis client to satisfy Client.
func NewClientAdapter(client redis.UniversalClient) Client {
	return &clientAdapter{client: client}
}

type clientAdapter struct {
	client redis.UniversalClient
}

func (c *clientAdapter) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return c.client.Eval(ctx, script, keys, args...).Result()
}

func (c *clientAdapter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) (any, error) {
	return c.client.EvalSha(ctx, sha1, keys, args...).Result()
}

func (c *clientAdapter) ScriptLoad(ctx context.Context, script string) (string, error) {
	return c.client.ScriptLoad(ctx, script).Result()
}

func (c *clientAdapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *clientAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.client.Del(ctx, keys...).Result()
}
