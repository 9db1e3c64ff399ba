package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/classreg/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so import
// logs can name who sent a batch.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}
