// Package logger builds the zap logger shared by the server and the
// backfill command and carries it through contexts.
package logger

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Environment string // production uses JSON output, anything else console
	ServiceName string
}

type contextKey string

const loggerKey contextKey = "logger"

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a configured logger.  Production environments log JSON with
// ISO8601 timestamps; others log colored console output.
func New(cfg Config) (*zap.Logger, error) {
	fields := zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	)
	if cfg.Environment == "production" || cfg.Environment == "prod" {
		prod := zap.NewProductionConfig()
		prod.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
		prod.EncoderConfig.TimeKey = "timestamp"
		prod.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return prod.Build(fields)
	}
	dev := zap.NewDevelopmentConfig()
	dev.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	dev.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return dev.Build(fields)
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or zap's global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}

// Middleware attaches a request-scoped logger to the request context and
// writes one structured line per request.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}
			l := base.With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(WithContext(req.Context(), l)))

			// Resolve the error here so the logged status is the one sent.
			if err := next(c); err != nil {
				c.Error(err)
			}

			l.Info("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}
