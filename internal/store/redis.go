package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions selects the Redis server and the key namespace shared by the job queue and the rate limiter.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// Redis is the shared Redis handle. Keys built with Key live under one namespace.
type Redis struct {
	Client    *redis.Client
	namespace string
}

// NewRedis builds a client with short timeouts. It does not dial; use Healthy to check the server.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{Client: client, namespace: strings.Trim(opts.Namespace, ":")}
}

// Key joins parts under the namespace, e.g. Key("photo-jobs") -> "edupulse:photo-jobs".
func (r *Redis) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if r != nil && r.namespace != "" {
		all = append(all, r.namespace)
	}
	for _, p := range parts {
		if p = strings.Trim(p, ":"); p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}

// Healthy pings the server within a second.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
