package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values of the API server.  Each
// field corresponds to an environment variable.
type Config struct {
	Env       string        // application environment (e.g. "dev", "prod")
	Port      string        // HTTP port to listen on
	DB        DBConfig      // MySQL connection settings
	JWTSecret string        // secret used to sign JWTs
	AccessTTL time.Duration // access token lifetime
	LogLevel  string        // zap level name (debug, info, warn, error)
	AMQPURL   string        // RabbitMQ URL; empty disables event publishing
	Hierarchy HierarchyConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// DBConfig holds the MySQL connection settings shared by the server and
// the backfill command.
type DBConfig struct {
	User string // database username
	Pass string // database password (optional)
	Host string // database host address
	Port      string // database port number
	Name string // database name

	MaxOpenConns    int           // pool ceiling; idle connections match it
	ConnMaxLifetime time.Duration // recycle connections older than this
}

// HierarchyConfig tunes the hierarchy engine.
type HierarchyConfig struct {
	CacheTTL time.Duration // lifetime of cached subordinate sets
	MaxDepth int           // manager chain length treated as a cycle
	UseCache bool          // read subordinate sets through the cache
}

// LoadDotEnv reads a .env file into the environment if one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      must("APP_PORT"),
		DB:        LoadDB(),
		JWTSecret: must("JWT_SECRET"),
		AccessTTL: time.Duration(mustInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		LogLevel:  envStr("LOG_LEVEL", "info"),
		AMQPURL:   os.Getenv("AMQP_URL"),
		Hierarchy: LoadHierarchy(),
		RateLimit: LoadRateLimitConfig(),
		Redis:     LoadRedis(),
	}
}

// LoadDB reads the DB_* variables.
func LoadDB() DBConfig {
	return DBConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"),
		Host: must("DB_HOST"),
		Port:      envStr("DB_PORT", "3306"),
		Name: must("DB_NAME"),

		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// LoadHierarchy reads the HIERARCHY_* variables.
func LoadHierarchy() HierarchyConfig {
	h := HierarchyConfig{
		CacheTTL: envDur("HIERARCHY_CACHE_TTL", time.Hour),
		MaxDepth: envInt("HIERARCHY_MAX_DEPTH", 256),
		UseCache: envBool("HIERARCHY_USE_CACHE", true),
	}
	if h.MaxDepth < 1 {
		h.MaxDepth = 1
	}
	return h
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
