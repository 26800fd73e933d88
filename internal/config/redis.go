package config

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance shared by the subordinate id cache
// and the login rate limiter.
type RedisConfig struct {
	Addr        string        // host:port
	Password    string        // optional
	DB          int           // logical database number
	TLS         bool          // dial with TLS
	Prefix      string        // namespace for subordinate id cache keys
	PingTimeout time.Duration // startup probe budget
}

// LoadRedis reads the REDIS_* variables.  REDIS_HOST and REDIS_PORT win
// over REDIS_ADDR when both are set.
func LoadRedis() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DB:          envInt("REDIS_DB", 0),
		TLS:         envBool("REDIS_TLS", false),
		Prefix:      envStr("REDIS_KEY_PREFIX", "tenancy"),
		PingTimeout: envDur("REDIS_PING_TIMEOUT", 2*time.Second),
	}
}

// NewRedisClient dials cfg and probes it once.  It returns nil when the
// probe fails; callers then run without the cache and the limiter.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
