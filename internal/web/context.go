package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/natijti/internal/core"
)

// WithRequestMetadata adds the client address and User-Agent to ctx for task logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
