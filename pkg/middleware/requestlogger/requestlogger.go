package requestlogger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/gaze-network/ledger-indexer/pkg/middleware/requestcontext"
	"github.com/gofiber/fiber/v2"
)

type Config struct {
	WithRequestHeader    bool          `mapstructure:"request_header"`
	WithRequestQuery     bool          `mapstructure:"request_query"`
	Disable              bool          `mapstructure:"disable"` // Disable logger level `INFO`
	HiddenRequestHeaders []string      `mapstructure:"hidden_request_headers"`
	SlowThreshold        time.Duration `mapstructure:"slow_threshold"` // Requests slower than this are logged at `WARN`. Zero disables it.
}

// New logs every completed request with its route, client and latency.
func New(config Config) fiber.Handler {
	hiddenRequestHeaders := make(map[string]struct{}, len(config.HiddenRequestHeaders))
	for _, header := range config.HiddenRequestHeaders {
		hiddenRequestHeaders[strings.TrimSpace(strings.ToLower(header))] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		level := requestLevel(err, status, latency, config.SlowThreshold)
		if config.Disable && level == slog.LevelInfo {
			return errors.WithStack(err)
		}

		requestAttrs := []any{
			slogx.String("method", c.Method()),
			slogx.String("path", c.Path()),
			slogx.String("route", c.Route().Path),
			slogx.String("ip", requestcontext.GetClientIP(c.UserContext())),
			slogx.String("user_agent", string(c.Context().UserAgent())),
			slogx.Any("params", c.AllParams()),
			slogx.Int("length", len(c.Body())),
		}
		if config.WithRequestQuery {
			requestAttrs = append(requestAttrs, slogx.String("query", string(c.Request().URI().QueryString())))
		}
		if config.WithRequestHeader {
			headers := make([]any, 0)
			for k, v := range c.GetReqHeaders() {
				if _, hidden := hiddenRequestHeaders[strings.ToLower(k)]; hidden {
					continue
				}
				headers = append(headers, slogx.Strings(k, v))
			}
			requestAttrs = append(requestAttrs, slog.Group("header", headers...))
		}

		attrs := []slog.Attr{
			slogx.String("event", "api_request"),
			slogx.Duration("latency", latency),
			slog.Group("request", requestAttrs...),
			slog.Group("response",
				slogx.Int("status", status),
				slogx.Int("length", len(c.Response().Body())),
			),
		}
		if level >= slog.LevelError {
			logErr := err
			if logErr == nil {
				logErr = fiber.NewError(status)
			}
			attrs = append(attrs, slogx.Error(logErr))
		}

		logger.LogAttrs(c.UserContext(), level, "Request Completed", attrs...)
		return errors.WithStack(err)
	}
}

// requestLevel is ERROR for failed requests, WARN for slow ones and INFO otherwise.
func requestLevel(err error, status int, latency, slowThreshold time.Duration) slog.Level {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return slog.LevelError
	case slowThreshold > 0 && latency >= slowThreshold:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
