package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheet2neon/internal/logging"
)

// withRequestLogger stores a logger carrying the client address and agent,
// so pipeline logs for an upload can be traced to who sent it.
func withRequestLogger(ctx context.Context, r *http.Request) context.Context {
	logger := logging.FromContext(ctx).With(
		"ip", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)
	return logging.WithLogger(ctx, logger)
}
