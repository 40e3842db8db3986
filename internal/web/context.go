package web

import (
	"context"
	"net/http"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/middleware"
)

// withRequestMetadata adds the client IP and User-Agent to ctx for the
// submission record.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = submit.ContextWithIPAddress(ctx, middleware.ClientIP(r))
	ctx = submit.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

type userKey struct{}

func contextWithUser(ctx context.Context, u auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFromContext returns the portal user set by requireUser.
func userFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(userKey{}).(auth.User)
	return u, ok
}
